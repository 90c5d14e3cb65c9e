package feedback

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Feedback
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Feedback)}
}

func (r *MemoryRepo) Create(ctx context.Context, fb Feedback) (Feedback, error) {
	if err := ctx.Err(); err != nil {
		return Feedback{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	fb.CreatedAt = now
	fb.UpdatedAt = now
	r.items[fb.ID] = fb
	return fb, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, feedbackID string) (Feedback, error) {
	if err := ctx.Err(); err != nil {
		return Feedback{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fb, ok := r.items[feedbackID]
	if !ok || fb.DeletedAt != nil {
		return Feedback{}, ErrNotFound
	}
	return fb, nil
}

func (r *MemoryRepo) List(ctx context.Context, onlyUnresolved bool, limit, offset int) ([]Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Feedback, 0, len(r.items))
	for _, fb := range r.items {
		if fb.DeletedAt != nil {
			continue
		}
		if onlyUnresolved && fb.Resolved {
			continue
		}
		all = append(all, fb)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []Feedback{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepo) SetResolved(ctx context.Context, feedbackID string, resolved bool) (Feedback, error) {
	if err := ctx.Err(); err != nil {
		return Feedback{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fb, ok := r.items[feedbackID]
	if !ok || fb.DeletedAt != nil {
		return Feedback{}, ErrNotFound
	}
	fb.Resolved = resolved
	fb.UpdatedAt = time.Now().UTC()
	r.items[feedbackID] = fb
	return fb, nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, feedbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fb, ok := r.items[feedbackID]
	if !ok || fb.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	fb.DeletedAt = &now
	fb.UpdatedAt = now
	r.items[feedbackID] = fb
	return nil
}
