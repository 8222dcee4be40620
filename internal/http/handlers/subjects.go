package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/surveyhub/internal/actorctx"
	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/http/middlewares"
	"github.com/geocoder89/surveyhub/internal/registration"
	"github.com/geocoder89/surveyhub/internal/token"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type SubjectRegistrar interface {
	Register(ctx context.Context, req subject.AddRequest) (registration.Result, error)
}

type BatchImporter interface {
	ImportBatch(ctx context.Context, surveyID int64, r io.Reader) (registration.BulkImportResult, error)
}

type SubjectsReader interface {
	GetByID(ctx context.Context, id string) (subject.Subject, error)
	ListBySurveyCursor(
		ctx context.Context,
		surveyID int64,
		limit int,
		afterCreatedAt time.Time,
		afterID string,
	) (items []subject.Subject, nextCursor *string, hasMore bool, err error)
}

// DeliveryWaker nudges the delivery worker once messages are committed.
type DeliveryWaker interface {
	WakeDeliveries(ctx context.Context) error
}

type SubjectsHandler struct {
	registrar SubjectRegistrar
	importer  BatchImporter
	reader    SubjectsReader
	waker     DeliveryWaker
}

func NewSubjectsHandler(registrar SubjectRegistrar, importer BatchImporter, reader SubjectsReader, waker DeliveryWaker) *SubjectsHandler {
	return &SubjectsHandler{
		registrar: registrar,
		importer:  importer,
		reader:    reader,
		waker:     waker,
	}
}

func surveyIDParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondBadRequest(ctx, "survey id must be a number", nil)
		return 0, false
	}

	return id, true
}

// POST /surveys/:id/subjects

func (h *SubjectsHandler) Register(ctx *gin.Context) {
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	var req subject.AddRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// force URL param as the source of truth
	req.SurveyID = surveyID

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// stash the acting user for the created_by audit column
	if userID, found := middlewares.UserIDFromContext(ctx); found && userID != "" {
		cctx = actorctx.WithUserID(cctx, userID)
	}

	res, err := h.registrar.Register(cctx, req)

	if err != nil {
		respondRegistrationError(ctx, err)
		return
	}

	h.wake()

	ctx.JSON(http.StatusCreated, gin.H{
		"subjectId":    res.SubjectID,
		"respondentId": res.RespondentID,
		"token":        res.Token,
	})
}

// POST /surveys/:id/subjects/import

func (h *SubjectsHandler) Import(ctx *gin.Context) {
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(60 * time.Second)
	defer cancel()

	if userID, found := middlewares.UserIDFromContext(ctx); found && userID != "" {
		cctx = actorctx.WithUserID(cctx, userID)
	}

	result, err := h.importer.ImportBatch(cctx, surveyID, ctx.Request.Body)

	if err != nil {
		RespondBadRequest(ctx, "Could not read csv payload", gin.H{"reason": err.Error()})
		return
	}

	if result.Imported > 0 {
		h.wake()
	}

	ctx.JSON(http.StatusOK, result)
}

// GET /surveys/:id/subjects

func (h *SubjectsHandler) ListBySurvey(ctx *gin.Context) {
	surveyID, ok := surveyIDParam(ctx)
	if !ok {
		return
	}

	limit := parseIntDefault(ctx.Query("limit"), 20)
	if limit < 1 || limit > 100 {
		RespondBadRequest(ctx, "limit must be between 1 and 100", nil)
		return
	}

	// ASC first-page sentinel: zero time + nil uuid, so the tuple
	// predicate stays valid against the uuid id column
	var afterCreatedAt time.Time
	afterID := "00000000-0000-0000-0000-000000000000"

	if cursor := ctx.Query("cursor"); cursor != "" {
		cur, err := utils.DecodeSubjectCursor(cursor)
		if err != nil {
			RespondBadRequest(ctx, "cursor is invalid", nil)
			return
		}
		afterCreatedAt = cur.CreatedAt
		afterID = cur.ID
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, next, hasMore, err := h.reader.ListBySurveyCursor(cctx, surveyID, limit, afterCreatedAt, afterID)

	if err != nil {
		if errors.Is(err, survey.ErrNotFound) {
			RespondNotFound(ctx, "Survey not found")
			return
		}
		RespondInternal(ctx, "Could not list subjects")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"limit":      limit,
		"count":      len(items),
		"items":      items,
		"hasMore":    hasMore,
		"nextCursor": next,
	})
}

// GET /subjects/:subjectId

func (h *SubjectsHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("subjectId")

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "subject id must be a valid UUID", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	s, err := h.reader.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, subject.ErrNotFound) {
			RespondNotFound(ctx, "Subject not found")
			return
		}
		RespondInternal(ctx, "Could not fetch subject")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s)
}

func (h *SubjectsHandler) wake() {
	if h.waker == nil {
		return
	}

	wctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// best effort: the worker polls anyway
	_ = h.waker.WakeDeliveries(wctx)
}

func respondRegistrationError(ctx *gin.Context, err error) {
	var genErr *token.GenerationError

	switch {
	case errors.Is(err, subject.ErrContactRequired):
		RespondBadRequest(ctx, "At least one contact method (email or phone) is required", gin.H{"code": "contact_required"})
	case errors.Is(err, subject.ErrFirstNameBlank),
		errors.Is(err, subject.ErrLastNameBlank),
		errors.Is(err, subject.ErrDepartmentNeeded),
		errors.Is(err, subject.ErrSurveyRequired):
		RespondBadRequest(ctx, err.Error(), nil)
	case errors.Is(err, department.ErrNotFound):
		RespondBadRequest(ctx, "Unknown department", gin.H{"code": "unknown_department"})
	case errors.Is(err, subject.ErrExternalIDExists):
		RespondConflict(ctx, "external_id_exists", "A subject with this external id already exists in the department.")
	case errors.Is(err, survey.ErrNotFound):
		RespondNotFound(ctx, "Survey not found")
	case errors.As(err, &genErr):
		RespondError(ctx, http.StatusInternalServerError, "token_generation_failed", "Could not issue a unique token", nil)
	case errors.Is(err, respondent.ErrTokenTaken):
		RespondError(ctx, http.StatusInternalServerError, "token_generation_failed", "Could not issue a unique token", nil)
	case errors.Is(err, subject.ErrDateUnrecognized):
		RespondBadRequest(ctx, err.Error(), nil)
	default:
		RespondInternal(ctx, "Could not register subject")
	}
}
