package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RespondentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRespondentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RespondentsRepo {
	return &RespondentsRepo{pool: pool, prom: prom}
}

func (repo *RespondentsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// TokenExists answers the issuer's uniqueness pre-check in a single round
// trip, and resolves survey existence at the same time.
func (repo *RespondentsRepo) TokenExists(ctx context.Context, surveyID int64, token string) (bool, error) {
	var surveyOK, taken bool

	err := repo.observe("respondents.token_exists", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM surveys WHERE id = $1),
			EXISTS(SELECT 1 FROM respondents WHERE survey_id = $1 AND token = $2)
	`, surveyID, token).Scan(&surveyOK, &taken)
	})

	if err != nil {
		return false, err
	}

	if !surveyOK {
		return false, survey.ErrNotFound
	}

	return taken, nil
}

func (repo *RespondentsRepo) GetByToken(ctx context.Context, surveyID int64, token string) (r respondent.Respondent, err error) {
	err = repo.observe("respondents.get_by_token", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, survey_id, token, active, first_access_at, finalized_at, created_at
		FROM respondents
		WHERE survey_id = $1 AND token = $2
	`, surveyID, token).Scan(
			&r.ID, &r.SurveyID, &r.Token, &r.Active,
			&r.FirstAccessAt, &r.FinalizedAt, &r.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = respondent.ErrNotFound
		}
		return respondent.Respondent{}, err
	}

	return
}

// MarkFirstAccess stamps the first-access timestamp once; later accesses
// leave the original value untouched.
func (repo *RespondentsRepo) MarkFirstAccess(ctx context.Context, id string) (err error) {
	var tag pgconn.CommandTag

	err = repo.observe("respondents.mark_first_access", func() error {
		var e error
		tag, e = repo.pool.Exec(ctx, `
		UPDATE respondents
		SET first_access_at = NOW()
		WHERE id = $1 AND first_access_at IS NULL
	`, id)
		return e
	})

	if err != nil {
		return
	}

	// zero rows means either unknown id or already stamped; both are fine
	_ = tag

	return nil
}
