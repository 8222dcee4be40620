package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/surveyhub/internal/domain/department"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DepartmentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDepartmentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DepartmentsRepo {
	return &DepartmentsRepo{pool: pool, prom: prom}
}

func (repo *DepartmentsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (repo *DepartmentsRepo) GetByID(ctx context.Context, id int64) (d department.Department, err error) {
	err = repo.observe("departments.get_by_id", func() error {
		return repo.pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM departments
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = department.ErrNotFound
		}
		return department.Department{}, err
	}

	return
}

func (repo *DepartmentsRepo) List(ctx context.Context) (departments []department.Department, err error) {
	var rows pgx.Rows

	err = repo.observe("departments.list", func() error {
		rows, err = repo.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM departments
		ORDER BY name ASC, id ASC
	`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	departments = make([]department.Department, 0)

	for rows.Next() {
		var d department.Department

		e := rows.Scan(&d.ID, &d.Name, &d.CreatedAt)

		if e != nil {
			err = e
			return
		}
		departments = append(departments, d)
	}

	err = rows.Err()

	return
}

func (repo *DepartmentsRepo) ListTemplates(ctx context.Context, departmentID int64) (tpls []department.MessageTemplate, err error) {
	var rows pgx.Rows

	err = repo.observe("departments.list_templates", func() error {
		rows, err = repo.pool.Query(ctx, `
		SELECT id, department_id, channel, subject, body, send_offset_days
		FROM message_templates
		WHERE department_id = $1
		ORDER BY id ASC
	`, departmentID)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	tpls = make([]department.MessageTemplate, 0)

	for rows.Next() {
		var t department.MessageTemplate

		e := rows.Scan(&t.ID, &t.DepartmentID, &t.Channel, &t.Subject, &t.Body, &t.SendOffsetDays)

		if e != nil {
			err = e
			return
		}
		tpls = append(tpls, t)
	}

	err = rows.Err()

	return
}
