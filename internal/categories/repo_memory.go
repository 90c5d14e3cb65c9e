package categories

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores categories in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Category
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Category)}
}

func (r *MemoryRepo) Create(ctx context.Context, category Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Tag == category.Tag && existing.DeletedAt == nil {
			return ErrDuplicateTag
		}
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.UpdatedAt = category.CreatedAt
	r.byID[category.ID] = category
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, categoryID string) (Category, error) {
	if err := ctx.Err(); err != nil {
		return Category{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	category, ok := r.byID[categoryID]
	if !ok {
		return Category{}, ErrNotFound
	}
	return category, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Category
	for _, category := range r.byID {
		if category.DeletedAt == nil {
			out = append(out, category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) Update(ctx context.Context, category Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[category.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = time.Now().UTC()
	r.byID[category.ID] = category
	return nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, categoryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	category, ok := r.byID[categoryID]
	if !ok || category.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	category.DeletedAt = &now
	r.byID[categoryID] = category
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
