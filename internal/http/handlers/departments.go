package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/surveyhub/internal/config"
	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/gin-gonic/gin"
)

type DepartmentsRepository interface {
	GetByID(ctx context.Context, id int64) (department.Department, error)
	List(ctx context.Context) ([]department.Department, error)
	ListTemplates(ctx context.Context, departmentID int64) ([]department.MessageTemplate, error)
}

type DepartmentsHandler struct {
	repo DepartmentsRepository
}

func NewDepartmentsHandler(repo DepartmentsRepository) *DepartmentsHandler {
	return &DepartmentsHandler{repo: repo}
}

func (h *DepartmentsHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	departments, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list departments")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": departments,
		"count": len(departments),
	})
}

func (h *DepartmentsHandler) GetByID(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil {
		RespondBadRequest(ctx, "department id must be a number", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	d, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, department.ErrNotFound) {
			RespondNotFound(ctx, "Department not found")
			return
		}
		RespondInternal(ctx, "Could not fetch department")
		return
	}

	templates, err := h.repo.ListTemplates(cctx, id)

	if err != nil {
		RespondInternal(ctx, "Could not fetch department templates")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"department": d,
		"templates":  templates,
	})
}
