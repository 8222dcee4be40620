package respondent

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Respondent is the per-survey identity holding the access token. It is
// immutable once persisted except for the lifecycle timestamps, which the
// survey-taking side stamps later.
type Respondent struct {
	ID            string     `json:"id"`
	SurveyID      int64      `json:"surveyId"`
	Token         string     `json:"token"`
	Active        bool       `json:"active"`
	FirstAccessAt *time.Time `json:"firstAccessAt,omitempty"`
	FinalizedAt   *time.Time `json:"finalizedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

var ErrNotFound = errors.New("respondent not found")

// ErrTokenTaken is the (survey_id, token) unique constraint surfaced as a
// domain error. Callers treat it as a signal to issue a fresh token.
var ErrTokenTaken = errors.New("token already held by another respondent of this survey")

func New(surveyID int64, token string) Respondent {
	return Respondent{
		ID:        uuid.NewString(),
		SurveyID:  surveyID,
		Token:     token,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}
