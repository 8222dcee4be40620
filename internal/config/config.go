package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	OTLPEndpoint string

	TokenLength    int
	MaxImportBytes int64

	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
}

func Load() Config {
	host, _ := os.Hostname()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 30*24*time.Hour),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@surveyhub.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Admin"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		TokenLength:    getEnvInt("TOKEN_LENGTH", 9),
		MaxImportBytes: int64(getEnvInt("MAX_IMPORT_BYTES", 5<<20)),

		PollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerID:      getEnv("WORKER_ID", host),
		Concurrency:   getEnvInt("WORKER_CONCURRENCY", 4),
		ShutdownGrace: getEnvDuration("WORKER_SHUTDOWN_GRACE", 10*time.Second),
		LockTTL:       getEnvDuration("WORKER_LOCK_TTL", 2*time.Minute),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "surveyhub")
	pass := getEnv("DB_PASSWORD", "surveyhub")
	name := getEnv("DB_NAME", "surveyhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("ignoring unparsable env value", "key", key, "err", err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("ignoring unparsable env value", "key", key, "err", err)
			return fallback
		}

		return d
	}
	return fallback
}
