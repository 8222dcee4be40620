package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names the registration path maps onto domain errors.
const (
	constraintRespondentToken  = "respondents_survey_token_uniq"
	constraintSubjectExternal  = "subjects_department_external_uniq"
	constraintRespondentSurvey = "respondents_survey_id_fkey"
	constraintSubjectDept      = "subjects_department_id_fkey"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func isConstraint(err error, code, name string) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == code && pgErr.ConstraintName == name
}
