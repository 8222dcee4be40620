package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/surveyhub/internal/domain/message"
	"github.com/geocoder89/surveyhub/internal/observability"
	"github.com/geocoder89/surveyhub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessagesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMessagesRepo(pool *pgxpool.Pool, prom *observability.Prom) *MessagesRepo {
	return &MessagesRepo{pool: pool, prom: prom}
}

func (repo *MessagesRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

const messageColumns = `id, subject_id, channel, recipient, subject, body,
	status, attempts, max_attempts, run_at, locked_at, locked_by,
	last_error, created_at, updated_at`

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	var status string

	err := row.Scan(
		&m.ID, &m.SubjectID, &m.Channel, &m.Recipient, &m.Subject, &m.Body,
		&status, &m.Attempts, &m.MaxAttempts, &m.RunAt, &m.LockedAt, &m.LockedBy,
		&m.LastError, &m.CreatedAt, &m.UpdatedAt,
	)

	if err != nil {
		return message.Message{}, err
	}

	m.Status = message.Status(status)

	return m, nil
}

// ClaimNext grabs the next due pending message with the SKIP LOCKED pattern
// so concurrent workers never claim the same row.
func (repo *MessagesRepo) ClaimNext(ctx context.Context, workerID string) (message.Message, error) {
	var m message.Message
	var err error

	err = repo.observe("messages.claim_next", func() error {
		row := repo.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM messages
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE messages
		SET status = 'sending',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+messageColumns, workerID)

		var scanErr error
		m, scanErr = scanMessage(row)
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, message.ErrNoneDue
		}
		return message.Message{}, err
	}

	return m, nil
}

func (repo *MessagesRepo) MarkSent(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("messages.mark_sent", func() error {
		tag, err = repo.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'sent',
		    attempts = attempts + 1,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return message.ErrNotFound
	}
	return nil
}

// MarkFailed bumps the attempt counter and reschedules the message for
// retryAt, or parks it as dead once the attempt budget is spent.
func (repo *MessagesRepo) MarkFailed(ctx context.Context, id string, errMsg string, retryAt time.Time) error {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("messages.mark_failed", func() error {
		tag, err = repo.pool.Exec(ctx, `
		UPDATE messages
		SET attempts = attempts + 1,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN 'dead' ELSE 'pending' END,
		    run_at = CASE WHEN attempts + 1 >= max_attempts THEN run_at ELSE $3 END,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg, retryAt)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return message.ErrNotFound
	}
	return nil
}

// RecordAttempt appends one row to the delivery audit trail. Audit failures
// must never fail the delivery itself, so callers log and move on.
func (repo *MessagesRepo) RecordAttempt(ctx context.Context, messageID, workerID string, attempt int, attemptErr *string) error {
	return repo.observe("messages.record_attempt", func() error {
		_, err := repo.pool.Exec(ctx, `
		INSERT INTO message_deliveries (message_id, worker_id, attempt, error, created_at)
		VALUES ($1,$2,$3,$4,NOW())
		ON CONFLICT (message_id, attempt) DO NOTHING
	`, messageID, workerID, attempt, attemptErr)
		return err
	})
}

// RequeueStaleSending returns crashed-over claims to the queue: a message
// stuck in 'sending' with a lock older than lockTTL means its worker died
// mid-delivery and nothing will ever finish it.
func (repo *MessagesRepo) RequeueStaleSending(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 60
	}

	var rows int64

	err := repo.observe("messages.requeue_stale", func() error {
		tag, err := repo.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'sending'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`, secs)

		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}

func (repo *MessagesRepo) GetByID(ctx context.Context, id string) (message.Message, error) {
	var m message.Message
	var err error

	err = repo.observe("messages.get_by_id", func() error {
		row := repo.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id)

		var scanErr error
		m, scanErr = scanMessage(row)
		return scanErr
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, err
	}

	return m, nil
}

// Retry requeues a dead or failed message for immediate delivery with a
// fresh attempt budget slice.
func (repo *MessagesRepo) Retry(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = repo.observe("messages.retry", func() error {
		tag, err = repo.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'pending',
		    run_at = NOW(),
		    max_attempts = attempts + max_attempts,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('dead', 'failed')
	`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return message.ErrNotFound
	}
	return nil
}

func (repo *MessagesRepo) ListCursor(
	ctx context.Context,
	status *string,
	limit int,
	afterUpdatedAt time.Time,
	afterID string,
) (items []message.Message, nextCursor *string, hasMore bool, err error) {
	op := "messages.list_cursor"

	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ($1::text IS NULL OR status = $1)
		  AND (updated_at, id) < ($2, $3)
		ORDER BY updated_at DESC, id DESC
		LIMIT $4
	`
	limitPlusOne := limit + 1

	var rows pgx.Rows
	err = repo.observe(op, func() error {
		var qerr error
		rows, qerr = repo.pool.Query(ctx, q, status, afterUpdatedAt, afterID, limitPlusOne)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]message.Message, 0, limit)

	for rows.Next() {
		m, scanErr := scanMessage(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]
		cur, encErr := utils.EncodeMessageCursor(last.UpdatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}
