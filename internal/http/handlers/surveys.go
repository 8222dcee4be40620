package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/surveyhub/internal/cache"
	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type SurveysRepository interface {
	Create(ctx context.Context, req survey.CreateSurveyRequest) (survey.Survey, error)
	GetByID(ctx context.Context, id int64) (survey.Survey, error)
	List(ctx context.Context, activeOnly *bool) ([]survey.Survey, error)
}

type SurveysHandler struct {
	repo  SurveysRepository
	cache *redis.Client
	local *cache.Cache // process-local fallback when redis is absent
}

const surveysListCacheTTL = 30 * time.Second

func NewSurveysHandler(repo SurveysRepository, redisCache *redis.Client, local *cache.Cache) *SurveysHandler {
	return &SurveysHandler{repo: repo, cache: redisCache, local: local}
}

func (h *SurveysHandler) Create(ctx *gin.Context) {
	var req survey.CreateSurveyRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.repo.Create(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create survey")
		return
	}

	// survey set changed, drop the list cache
	if h.cache != nil {
		_ = h.cache.Del(cctx, utils.BuildSurveysListCacheKey(nil)).Err()
		active := true
		_ = h.cache.Del(cctx, utils.BuildSurveysListCacheKey(&active)).Err()
	}
	if h.local != nil {
		h.local.Clear()
	}

	ctx.JSON(http.StatusCreated, s)
}

func (h *SurveysHandler) List(ctx *gin.Context) {
	var activeOnly *bool

	if raw := ctx.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RespondBadRequest(ctx, "active must be true or false", nil)
			return
		}
		activeOnly = &v
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	key := utils.BuildSurveysListCacheKey(activeOnly)

	if h.cache != nil {
		if raw, err := h.cache.Get(cctx, key).Bytes(); err == nil {
			var cached []survey.Survey
			if json.Unmarshal(raw, &cached) == nil {
				RespondJSONWithETag(ctx, http.StatusOK, gin.H{
					"items": cached,
					"count": len(cached),
				})
				return
			}
		}
	} else if h.local != nil {
		if v, ok := h.local.Get(key); ok {
			if cached, ok := v.([]survey.Survey); ok {
				RespondJSONWithETag(ctx, http.StatusOK, gin.H{
					"items": cached,
					"count": len(cached),
				})
				return
			}
		}
	}

	surveys, err := h.repo.List(cctx, activeOnly)

	if err != nil {
		RespondInternal(ctx, "Could not list surveys")
		return
	}

	if h.cache != nil {
		if raw, err := json.Marshal(surveys); err == nil {
			_ = h.cache.Set(cctx, key, raw, surveysListCacheTTL).Err()
		}
	} else if h.local != nil {
		h.local.Set(key, surveys)
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": surveys,
		"count": len(surveys),
	})
}

func (h *SurveysHandler) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondBadRequest(ctx, "survey id must be a number", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if err == survey.ErrNotFound {
			RespondNotFound(ctx, "Survey not found")
			return
		}
		RespondInternal(ctx, "Could not fetch survey")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s)
}
