package registration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/token"
)

// Result is what a successful registration hands back to the caller.
type Result struct {
	SubjectID    string `json:"subjectId"`
	RespondentID string `json:"respondentId"`
	Token        string `json:"token"`
}

// Store persists one registration as a single atomic unit: respondent,
// subject and the template-derived messages commit together or not at all.
// A lost token race surfaces as respondent.ErrTokenTaken.
type Store interface {
	CreateRegistration(ctx context.Context, resp respondent.Respondent, sub subject.Subject) (Result, error)
}

type TokenIssuer interface {
	Issue(ctx context.Context, surveyID int64) (respondent.Respondent, error)
}

type Registrar struct {
	issuer TokenIssuer
	store  Store
	log    *slog.Logger
}

func NewRegistrar(issuer TokenIssuer, store Store, log *slog.Logger) *Registrar {
	if log == nil {
		log = slog.Default()
	}

	return &Registrar{
		issuer: issuer,
		store:  store,
		log:    log,
	}
}

// Register validates one participant record and creates the persisted
// Subject+Respondent pair bound to a freshly issued token. Validation runs
// before any store call. The application-level uniqueness pre-check inside
// the issuer is only an optimization: when the insert still loses the race,
// the store reports respondent.ErrTokenTaken and a fresh token is issued,
// bounded by the same attempt budget.
func (rg *Registrar) Register(ctx context.Context, req subject.AddRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	for attempt := 1; attempt <= token.MaxAttempts; attempt++ {
		resp, err := rg.issuer.Issue(ctx, req.SurveyID)

		if err != nil {
			return Result{}, err
		}

		sub := subject.NewFromAddRequest(req, resp.ID)

		res, err := rg.store.CreateRegistration(ctx, resp, sub)

		if err != nil {
			if errors.Is(err, respondent.ErrTokenTaken) {
				rg.log.Warn("token insert lost the race, reissuing",
					"survey_id", req.SurveyID,
					"attempt", attempt,
				)
				continue
			}

			return Result{}, err
		}

		return res, nil
	}

	return Result{}, &token.GenerationError{SurveyID: req.SurveyID, Err: token.ErrAttemptsExhausted}
}
