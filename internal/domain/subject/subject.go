package subject

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subject is the participant's personal-data record, linked one-to-one with
// a Respondent. A Subject is never created without its Respondent/token pair.
type Subject struct {
	ID           string     `json:"id"`
	RespondentID string     `json:"respondentId"`
	DepartmentID int64      `json:"departmentId"`
	ExternalID   *string    `json:"externalId,omitempty"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	MiddleName   string     `json:"middleName,omitempty"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	CreatedBy    *string    `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

var (
	ErrNotFound         = errors.New("subject not found")
	ErrContactRequired  = errors.New("either email or phone is required")
	ErrFirstNameBlank   = errors.New("first name is required")
	ErrLastNameBlank    = errors.New("last name is required")
	ErrSurveyRequired   = errors.New("survey id is required")
	ErrDepartmentNeeded = errors.New("department id is required")
	ErrDateUnrecognized = errors.New("unrecognized date")

	// ErrExternalIDExists maps the per-department unique constraint on the
	// external identifier.
	ErrExternalIDExists = errors.New("external id already exists in this department")
)

// AddRequest is the registration DTO. SurveyID comes from the URL, never from
// the body. DateOfBirth stays a string here because both accepted input
// formats are resolved by ParseDOB.
type AddRequest struct {
	SurveyID     int64  `json:"-"`
	DepartmentID int64  `json:"departmentId" binding:"required,min=1"`
	ExternalID   string `json:"externalId" binding:"omitempty,max=64"`
	FirstName    string `json:"firstName" binding:"required,min=1,max=120"`
	LastName     string `json:"lastName" binding:"required,min=1,max=120"`
	MiddleName   string `json:"middleName" binding:"omitempty,max=120"`
	DateOfBirth  string `json:"dateOfBirth" binding:"omitempty"`
	Email        string `json:"email" binding:"omitempty,email,max=254"`
	Phone        string `json:"phone" binding:"omitempty,max=32"`
}

// Validate covers the rules binding tags cannot express, and is the
// authoritative check for rows arriving from the CSV path, which never goes
// through gin binding. It must be called before any persistence attempt.
func (r AddRequest) Validate() error {
	if r.SurveyID <= 0 {
		return ErrSurveyRequired
	}
	if r.DepartmentID <= 0 {
		return ErrDepartmentNeeded
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return ErrFirstNameBlank
	}
	if strings.TrimSpace(r.LastName) == "" {
		return ErrLastNameBlank
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrContactRequired
	}
	if s := strings.TrimSpace(r.DateOfBirth); s != "" {
		if _, err := ParseDOB(s); err != nil {
			return err
		}
	}
	return nil
}

// NewFromAddRequest assumes Validate has passed.
func NewFromAddRequest(req AddRequest, respondentID string) Subject {
	now := time.Now().UTC()

	var dob *time.Time
	if s := strings.TrimSpace(req.DateOfBirth); s != "" {
		if d, err := ParseDOB(s); err == nil {
			dob = &d
		}
	}

	var xid *string
	if s := strings.TrimSpace(req.ExternalID); s != "" {
		xid = &s
	}

	return Subject{
		ID:           uuid.NewString(),
		RespondentID: respondentID,
		DepartmentID: req.DepartmentID,
		ExternalID:   xid,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		MiddleName:   strings.TrimSpace(req.MiddleName),
		DateOfBirth:  dob,
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ParseDOB accepts yyyy-MM-dd first, then MM/dd/yyyy.
func ParseDOB(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("01/02/2006", s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w %q: expected yyyy-MM-dd or MM/dd/yyyy", ErrDateUnrecognized, s)
}
