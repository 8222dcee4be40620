package survey

import (
	"errors"
	"time"
)

type Survey struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var ErrNotFound = errors.New("survey not found")

type CreateSurveyRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=160"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// A factory to build a Survey from the incoming DTO. The database assigns
// the numeric id on insert.

func NewFromCreateRequest(req CreateSurveyRequest) Survey {
	now := time.Now().UTC()

	return Survey{
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
