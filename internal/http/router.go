package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/surveyhub/internal/auth"
	"github.com/geocoder89/surveyhub/internal/cache"
	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/http/handlers"
	"github.com/geocoder89/surveyhub/internal/http/middlewares"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/geocoder89/surveyhub/internal/queue/redisclient"
	"github.com/geocoder89/surveyhub/internal/registration"
	"github.com/geocoder89/surveyhub/internal/repo/postgres"
	"github.com/geocoder89/surveyhub/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redisclient.Client
	Prom     *observability.Prom
	Registry *prometheus.Registry
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	cfg := deps.Cfg
	log := deps.Log

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(otelgin.Middleware("surveyhub"))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware([]string{"http://localhost:3000"}))

	// health

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if deps.Pool != nil {
			if err := deps.Pool.Ping(ctx); err != nil {
				return err
			}
		}
		if deps.Redis != nil {
			return deps.Redis.Ping(ctx)
		}
		return nil
	}

	healthHandler := handlers.NewHealthHandler(ping)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/readyz", healthHandler.Readyz)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/swagger", handlers.SwaggerUI)
	r.StaticFile("/docs/openapi.yaml", "./docs/openapi.yaml")

	// wire up repositories

	surveysRepo := postgres.NewSurveysRepo(deps.Pool, deps.Prom)
	departmentsRepo := postgres.NewDepartmentsRepo(deps.Pool, deps.Prom)
	respondentsRepo := postgres.NewRespondentsRepo(deps.Pool, deps.Prom)
	subjectsRepo := postgres.NewSubjectsRepo(deps.Pool, deps.Prom)
	messagesRepo := postgres.NewMessagesRepo(deps.Pool, deps.Prom)
	usersRepo := postgres.NewUsersRepo(deps.Pool)
	refreshRepo := postgres.NewRefreshTokensRepo(deps.Pool)

	// token issuance and registration pipeline

	gen, err := token.NewGenerator(cfg.TokenLength, token.DefaultAlphabet)
	if err != nil {
		return nil, err
	}

	issuer := token.NewIssuer(gen, respondentsRepo, log)
	registrar := registration.NewRegistrar(issuer, subjectsRepo, log)
	importer := registration.NewImporter(registrar)

	// auth plumbing

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	authMW := middlewares.NewAuthMiddleware(jwtManager)
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	var waker handlers.DeliveryWaker
	var surveysHandler *handlers.SurveysHandler

	localCache := cache.New(30 * time.Second)

	if deps.Redis != nil {
		waker = deps.Redis
		surveysHandler = handlers.NewSurveysHandler(surveysRepo, deps.Redis.Raw(), localCache)
	} else {
		surveysHandler = handlers.NewSurveysHandler(surveysRepo, nil, localCache)
	}

	subjectsHandler := handlers.NewSubjectsHandler(registrar, importer, subjectsRepo, waker)
	departmentsHandler := handlers.NewDepartmentsHandler(departmentsRepo)
	messagesHandler := handlers.NewAdminMessagesHandler(messagesRepo)
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshRepo, cfg)

	// public auth routes

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RequireJSON())
	{
		authGroup.POST("/signup", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.SignUp)
		authGroup.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// authenticated API

	api := r.Group("/")
	api.Use(authMW.RequireAuth())
	{
		api.GET("/surveys", surveysHandler.List)
		api.GET("/surveys/:id", surveysHandler.GetByID)
		api.POST("/surveys", middlewares.RequireJSON(), authMW.RequireRole("admin"), surveysHandler.Create)

		api.POST("/surveys/:id/subjects", middlewares.RequireJSON(), subjectsHandler.Register)
		api.POST("/surveys/:id/subjects/import",
			middlewares.MaxBodyBytes(cfg.MaxImportBytes),
			subjectsHandler.Import)
		api.GET("/surveys/:id/subjects", subjectsHandler.ListBySurvey)
		api.GET("/subjects/:subjectId", subjectsHandler.GetByID)

		api.GET("/departments", departmentsHandler.List)
		api.GET("/departments/:id", departmentsHandler.GetByID)
	}

	// admin surface

	admin := r.Group("/admin")
	admin.Use(authMW.RequireAuth(), authMW.RequireRole("admin"))
	{
		admin.GET("/messages", messagesHandler.List)
		admin.GET("/messages/:id", messagesHandler.GetByID)
		admin.POST("/messages/:id/retry", messagesHandler.Retry)
	}

	return r, nil
}
