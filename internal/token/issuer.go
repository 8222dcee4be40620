package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/surveyhub/internal/domain/respondent"
)

// MaxAttempts bounds collision-driven regenerations. Exhausting it implies
// the token space is saturated or the uniqueness check is broken, which is
// fatal for the registration, never a silently-reused token.
const MaxAttempts = 4

var ErrAttemptsExhausted = errors.New("unable to generate a unique token")

// GenerationError distinguishes "the system could not allocate an identity"
// from business validation failures.
type GenerationError struct {
	SurveyID int64
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("token generation for survey %d: %v", e.SurveyID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// RespondentFinder reports whether a candidate token is already held by a
// respondent of the survey. Implementations return survey.ErrNotFound when
// the survey id does not resolve.
type RespondentFinder interface {
	TokenExists(ctx context.Context, surveyID int64, token string) (bool, error)
}

type Issuer struct {
	gen    *Generator
	finder RespondentFinder
	log    *slog.Logger
}

func NewIssuer(gen *Generator, finder RespondentFinder, log *slog.Logger) *Issuer {
	if log == nil {
		log = slog.Default()
	}

	return &Issuer{
		gen:    gen,
		finder: finder,
		log:    log,
	}
}

// Issue returns a Respondent-in-progress carrying a token not held by any
// existing respondent of the survey. Persistence is the caller's
// responsibility; the storage-level unique constraint stays the final
// arbiter under concurrency.
func (iss *Issuer) Issue(ctx context.Context, surveyID int64) (respondent.Respondent, error) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		candidate, err := iss.gen.Next()

		if err != nil {
			return respondent.Respondent{}, &GenerationError{SurveyID: surveyID, Err: err}
		}

		taken, err := iss.finder.TokenExists(ctx, surveyID, candidate)

		if err != nil {
			return respondent.Respondent{}, &GenerationError{SurveyID: surveyID, Err: err}
		}

		if !taken {
			return respondent.New(surveyID, candidate), nil
		}

		iss.log.Warn("token collision, regenerating",
			"survey_id", surveyID,
			"attempt", attempt,
		)
	}

	return respondent.Respondent{}, &GenerationError{SurveyID: surveyID, Err: ErrAttemptsExhausted}
}
