package feedback

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

const feedbackColumns = `id, user_id, subject, body, resolved, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, fb Feedback) (Feedback, error) {
	const query = `
INSERT INTO feedback (id, user_id, subject, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
RETURNING created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query, fb.ID, fb.UserID, fb.Subject, fb.Body).
		Scan(&fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		return Feedback{}, err
	}
	return fb, nil
}

func (r *PGRepo) GetByID(ctx context.Context, feedbackID string) (Feedback, error) {
	const query = `
SELECT ` + feedbackColumns + `
FROM feedback
WHERE id = $1 AND deleted_at IS NULL`
	fb, err := scanFeedback(r.DB.QueryRowContext(ctx, query, feedbackID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Feedback{}, ErrNotFound
		}
		return Feedback{}, err
	}
	return fb, nil
}

func (r *PGRepo) List(ctx context.Context, onlyUnresolved bool, limit, offset int) ([]Feedback, error) {
	query := `
SELECT ` + feedbackColumns + `
FROM feedback
WHERE deleted_at IS NULL`
	if onlyUnresolved {
		query += ` AND resolved = FALSE`
	}
	query += `
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (r *PGRepo) SetResolved(ctx context.Context, feedbackID string, resolved bool) (Feedback, error) {
	const query = `
UPDATE feedback
SET resolved = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + feedbackColumns
	fb, err := scanFeedback(r.DB.QueryRowContext(ctx, query, feedbackID, resolved))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Feedback{}, ErrNotFound
		}
		return Feedback{}, err
	}
	return fb, nil
}

func (r *PGRepo) SoftDelete(ctx context.Context, feedbackID string) error {
	const query = `
UPDATE feedback
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, feedbackID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (Feedback, error) {
	var fb Feedback
	err := row.Scan(
		&fb.ID,
		&fb.UserID,
		&fb.Subject,
		&fb.Body,
		&fb.Resolved,
		&fb.CreatedAt,
		&fb.UpdatedAt,
	)
	if err != nil {
		return Feedback{}, err
	}
	return fb, nil
}
