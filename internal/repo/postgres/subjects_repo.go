package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/surveyhub/internal/actorctx"
	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/domain/respondent"
	"github.com/geocoder89/surveyhub/internal/domain/subject"
	"github.com/geocoder89/surveyhub/internal/domain/survey"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/geocoder89/surveyhub/internal/registration"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubjectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSubjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SubjectsRepo {
	return &SubjectsRepo{pool: pool, prom: prom}
}

func (repo *SubjectsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

// CreateRegistration persists one registration in a single transaction:
// respondent first, then the subject linked to it, then the messages derived
// from the department's templates. The (survey_id, token) unique constraint
// is the final arbiter under concurrency; losing that race surfaces as
// respondent.ErrTokenTaken so the caller can issue a fresh token.
func (repo *SubjectsRepo) CreateRegistration(ctx context.Context, resp respondent.Respondent, sub subject.Subject) (res registration.Result, err error) {
	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})

	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// survey name feeds template rendering and doubles as the existence check
	var surveyName string

	err = repo.observe("subjects.create.survey_lookup", func() error {
		return tx.QueryRow(ctx, `SELECT name FROM surveys WHERE id = $1`, resp.SurveyID).Scan(&surveyName)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = survey.ErrNotFound
		}
		return
	}

	err = repo.observe("subjects.create.respondent_insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO respondents (id, survey_id, token, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, resp.ID, resp.SurveyID, resp.Token, resp.Active, resp.CreatedAt)
		return e
	})

	if err != nil {
		switch {
		case isConstraint(err, "23505", constraintRespondentToken):
			err = respondent.ErrTokenTaken
		case isConstraint(err, "23503", constraintRespondentSurvey):
			err = survey.ErrNotFound
		}
		return
	}

	if createdBy, ok := actorctx.UserIDFrom(ctx); ok {
		sub.CreatedBy = &createdBy
	}

	err = repo.observe("subjects.create.subject_insert", func() error {
		_, e := tx.Exec(ctx, `
		INSERT INTO subjects (
			id, respondent_id, department_id, external_id,
			first_name, last_name, middle_name, date_of_birth,
			email, phone, created_by, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,
			$9,$10,$11,$12,$13
		)
	`, sub.ID, sub.RespondentID, sub.DepartmentID, sub.ExternalID,
			sub.FirstName, sub.LastName, sub.MiddleName, sub.DateOfBirth,
			sub.Email, sub.Phone, sub.CreatedBy, sub.CreatedAt, sub.UpdatedAt)
		return e
	})

	if err != nil {
		switch {
		case isConstraint(err, "23505", constraintSubjectExternal):
			err = subject.ErrExternalIDExists
		case isConstraint(err, "23503", constraintSubjectDept):
			err = department.ErrNotFound
		}
		return
	}

	msgs, err := repo.buildMessages(ctx, tx, resp, sub, surveyName)

	if err != nil {
		return
	}

	for _, m := range msgs {
		err = repo.observe("subjects.create.message_insert", func() error {
			_, e := tx.Exec(ctx, `
			INSERT INTO messages (
				id, subject_id, channel, recipient, subject, body,
				status, attempts, max_attempts, run_at, created_at, updated_at
			) VALUES (
				$1,$2,$3,$4,$5,$6,
				$7,$8,$9,$10,$11,$12
			)
		`, m.ID, m.SubjectID, m.Channel, m.Recipient, m.Subject, m.Body,
				string(m.Status), m.Attempts, m.MaxAttempts, m.RunAt, m.CreatedAt, m.UpdatedAt)
			return e
		})

		if err != nil {
			return
		}
	}

	err = tx.Commit(ctx)

	if err != nil {
		return
	}

	res = registration.Result{
		SubjectID:    sub.ID,
		RespondentID: resp.ID,
		Token:        resp.Token,
	}

	return
}

func (repo *SubjectsRepo) buildMessages(ctx context.Context, tx pgx.Tx, resp respondent.Respondent, sub subject.Subject, surveyName string) ([]message.Message, error) {
	var rows pgx.Rows
	var err error

	err = repo.observe("subjects.create.templates", func() error {
		rows, err = tx.Query(ctx, `
		SELECT id, department_id, channel, subject, body, send_offset_days
		FROM message_templates
		WHERE department_id = $1
		ORDER BY id ASC
	`, sub.DepartmentID)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var tpls []department.MessageTemplate

	for rows.Next() {
		var t department.MessageTemplate

		if e := rows.Scan(&t.ID, &t.DepartmentID, &t.Channel, &t.Subject, &t.Body, &t.SendOffsetDays); e != nil {
			return nil, e
		}
		tpls = append(tpls, t)
	}

	if e := rows.Err(); e != nil {
		return nil, e
	}

	msgs := make([]message.Message, 0, len(tpls))

	for _, tpl := range tpls {
		m, e := message.NewFromTemplate(tpl, sub, resp.Token, surveyName, sub.CreatedAt)

		if e != nil {
			// a template whose channel the subject has no contact for is
			// skipped, not an error
			if errors.Is(e, message.ErrNoRecipient) {
				continue
			}
			return nil, e
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

func (repo *SubjectsRepo) GetByID(ctx context.Context, id string) (s subject.Subject, err error) {
	err = repo.observe("subjects.get_by_id", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, respondent_id, department_id, external_id,
		       first_name, last_name, middle_name, date_of_birth,
		       email, phone, created_by, created_at, updated_at
		FROM subjects
		WHERE id = $1
	`, id).Scan(
			&s.ID, &s.RespondentID, &s.DepartmentID, &s.ExternalID,
			&s.FirstName, &s.LastName, &s.MiddleName, &s.DateOfBirth,
			&s.Email, &s.Phone, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = subject.ErrNotFound
		}
		return subject.Subject{}, err
	}

	return
}

func (repo *SubjectsRepo) ListBySurveyCursor(
	ctx context.Context,
	surveyID int64,
	limit int,
	afterCreatedAt time.Time,
	afterID string,
) (items []subject.Subject, nextCursor *string, hasMore bool, err error) {
	op := "subjects.list_by_survey_cursor"

	q := `
		SELECT s.id, s.respondent_id, s.department_id, s.external_id,
		       s.first_name, s.last_name, s.middle_name, s.date_of_birth,
		       s.email, s.phone, s.created_by, s.created_at, s.updated_at
		FROM subjects s
		JOIN respondents r ON r.id = s.respondent_id
		WHERE r.survey_id = $1
		  AND (s.created_at, s.id) > ($2, $3)
		ORDER BY s.created_at ASC, s.id ASC
		LIMIT $4
	`
	limitPlusOne := limit + 1

	var rows pgx.Rows
	err = repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, q, surveyID, afterCreatedAt, afterID, limitPlusOne)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]subject.Subject, 0, limit)

	for rows.Next() {
		var s subject.Subject
		if scanErr := rows.Scan(
			&s.ID, &s.RespondentID, &s.DepartmentID, &s.ExternalID,
			&s.FirstName, &s.LastName, &s.MiddleName, &s.DateOfBirth,
			&s.Email, &s.Phone, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		); scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeSubjectCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	// distinguish "no subjects yet" from "no such survey"
	if len(out) == 0 {
		var dummy int64

		err = repo.observe("subjects.list_by_survey_cursor.check_survey", func() error {
			return repo.pool.QueryRow(ctx, `SELECT id FROM surveys WHERE id = $1`, surveyID).Scan(&dummy)
		})

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, false, survey.ErrNotFound
		}

		if err != nil {
			return nil, nil, false, err
		}
	}

	return out, nextCursor, hasMore, nil
}
