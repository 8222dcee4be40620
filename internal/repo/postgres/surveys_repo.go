package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SurveysRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSurveysRepo(pool *pgxpool.Pool, prom *observability.Prom) *SurveysRepo {
	return &SurveysRepo{pool: pool, prom: prom}
}

func (repo *SurveysRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *SurveysRepo) Create(ctx context.Context, req survey.CreateSurveyRequest) (s survey.Survey, err error) {
	s = survey.NewFromCreateRequest(req)

	err = repo.observe("surveys.create", func() error {
		return repo.pool.QueryRow(ctx, `
		INSERT INTO surveys (name, description, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, s.Name, s.Description, s.Active, s.CreatedAt, s.UpdatedAt).Scan(&s.ID)
	})

	if err != nil {
		return survey.Survey{}, err
	}

	return
}

func (repo *SurveysRepo) GetByID(ctx context.Context, id int64) (s survey.Survey, err error) {
	err = repo.observe("surveys.get_by_id", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM surveys
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Description, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = survey.ErrNotFound
		}
		return survey.Survey{}, err
	}

	return
}

func (repo *SurveysRepo) List(ctx context.Context, activeOnly *bool) (surveys []survey.Survey, err error) {
	var rows pgx.Rows

	err = repo.observe("surveys.list", func() error {
		rows, err = repo.pool.Query(ctx, `
		SELECT id, name, description, active, created_at, updated_at
		FROM surveys
		WHERE ($1::boolean IS NULL OR active = $1)
		ORDER BY created_at DESC, id DESC
	`, activeOnly)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	surveys = make([]survey.Survey, 0)

	for rows.Next() {
		var s survey.Survey

		e := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Active, &s.CreatedAt, &s.UpdatedAt)

		if e != nil {
			err = e
			return
		}
		surveys = append(surveys, s)
	}

	err = rows.Err()

	return
}
