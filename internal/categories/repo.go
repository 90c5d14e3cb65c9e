package categories

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("category not found")
	ErrDuplicateTag = errors.New("category tag already exists")
)

// Repo defines persistence operations for categories.
type Repo interface {
	Create(ctx context.Context, category Category) error
	// GetByID returns a category even when soft-deleted; classifications
	// referencing a removed category still need its tag.
	GetByID(ctx context.Context, categoryID string) (Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, category Category) error
	SoftDelete(ctx context.Context, categoryID string) error
}
