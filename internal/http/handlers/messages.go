package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/http/middlewares"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminMessagesRepo interface {
	ListCursor(
		ctx context.Context,
		status *string,
		limit int,
		afterUpdatedAt time.Time,
		afterID string,
	) (items []message.Message, nextCursor *string, hasMore bool, err error)
	GetByID(ctx context.Context, id string) (message.Message, error)
	Retry(ctx context.Context, id string) error
}

type AdminMessagesHandler struct {
	repo AdminMessagesRepo
}

func NewAdminMessagesHandler(repo AdminMessagesRepo) *AdminMessagesHandler {
	return &AdminMessagesHandler{
		repo: repo,
	}
}

// GET /admin/messages?status=dead&limit=50&cursor=...

func (h *AdminMessagesHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 20)
	if limit < 1 || limit > 100 {
		RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
		return
	}

	var statusPtr *string
	if s := ctx.Query("status"); s != "" {
		if !message.Status(s).IsValid() {
			RespondBadRequest(ctx, "status is not a known message status", nil)
			return
		}
		statusPtr = &s
	}

	cursor := ctx.Query("cursor")

	// DESC first-page sentinel: "far future" + max UUID
	afterUpdatedAt := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	afterID := "ffffffff-ffff-ffff-ffff-ffffffffffff"

	if cursor != "" {
		cur, err := utils.DecodeMessageCursor(cursor)
		if err != nil {
			RespondBadRequest(ctx, "cursor is invalid", nil)
			return
		}
		afterUpdatedAt = cur.UpdatedAt
		afterID = cur.ID
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, next, hasMore, err := h.repo.ListCursor(cctx, statusPtr, limit, afterUpdatedAt, afterID)
	if err != nil {
		RespondInternal(ctx, "Could not list messages")
		return
	}

	resp := gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    hasMore,
		"nextCursor": next,
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// GET /admin/messages/:id

func (h *AdminMessagesHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxMessageID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "message id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	m, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			RespondNotFound(ctx, "Message not found")
			return
		}

		RespondInternal(ctx, "Could not fetch message")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, m)
}

// POST /admin/messages/:id/retry

func (h *AdminMessagesHandler) Retry(ctx *gin.Context) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxMessageID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "message id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Retry(cctx, id)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			RespondNotFound(ctx, "Message not found or not retryable")
			return
		}
		RespondInternal(ctx, "Could not retry message")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"messageId": id,
		"status":    "pending",
	})
}
