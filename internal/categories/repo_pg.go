package categories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, category Category) error {
	const query = `
INSERT INTO categories (id, name, tag, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Tag,
		category.Description,
		category.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "categories_tag_key") {
		return ErrDuplicateTag
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, categoryID string) (Category, error) {
	const query = `
SELECT id, name, tag, description, created_at, updated_at, deleted_at
FROM categories
WHERE id = $1
LIMIT 1`
	var (
		c         Category
		deletedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, categoryID).Scan(
		&c.ID, &c.Name, &c.Tag, &c.Description, &c.CreatedAt, &c.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return c, nil
}

func (r *PGRepo) List(ctx context.Context) ([]Category, error) {
	const query = `
SELECT id, name, tag, description, created_at, updated_at
FROM categories
WHERE deleted_at IS NULL
ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Tag, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, category Category) error {
	const query = `
UPDATE categories
SET name = $2, tag = $3, description = $4, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, category.ID, category.Name, category.Tag, category.Description)
	if err != nil {
		if strings.Contains(err.Error(), "categories_tag_key") {
			return ErrDuplicateTag
		}
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

func (r *PGRepo) SoftDelete(ctx context.Context, categoryID string) error {
	const query = `
UPDATE categories SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, categoryID)
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

var _ Repo = (*PGRepo)(nil)
