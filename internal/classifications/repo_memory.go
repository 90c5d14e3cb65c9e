package classifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores classifications in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	byExt   map[string]*Classification
	results map[int64]*Result
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byExt:   make(map[string]*Classification),
		results: make(map[int64]*Result),
	}
}

// Create stores the classification.
func (r *MemoryRepo) Create(ctx context.Context, c Classification) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	stored := c
	r.byExt[c.ExternalID] = &stored
	return c, nil
}

// GetByExternalID returns a live classification by its external ID.
func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalID string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byExt[externalID]
	if !ok || c.DeletedAt != nil {
		return Classification{}, ErrNotFound
	}
	out := *c
	if res, ok := r.results[c.ID]; ok {
		copied := *res
		out.Result = &copied
	}
	return out, nil
}

// ListByUser returns a user's classifications newest-first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Classification
	for _, c := range r.byExt {
		if c.UserID != userID || c.DeletedAt != nil {
			continue
		}
		copied := *c
		if res, ok := r.results[c.ID]; ok {
			res := *res
			copied.Result = &res
		}
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Transition moves the classification to the given status.
func (r *MemoryRepo) Transition(ctx context.Context, externalID string, to Status) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byExt[externalID]
	if !ok || c.DeletedAt != nil {
		return Classification{}, ErrNotFound
	}
	if !c.Status.CanTransitionTo(to) {
		return Classification{}, ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return *c, nil
}

// SoftDelete marks the classification and its result deleted.
func (r *MemoryRepo) SoftDelete(ctx context.Context, externalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byExt[externalID]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	delete(r.results, c.ID)
	return nil
}

// CreateResult stores the analysis result, keeping at most one per classification.
func (r *MemoryRepo) CreateResult(ctx context.Context, externalID string, result Result) (Result, bool, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byExt[externalID]
	if !ok || c.DeletedAt != nil {
		return Result{}, false, ErrNotFound
	}
	if existing, ok := r.results[c.ID]; ok {
		return *existing, false, nil
	}
	r.nextID++
	result.ID = r.nextID
	result.ClassificationID = c.ID
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	stored := result
	r.results[c.ID] = &stored
	if c.Status.CanTransitionTo(StatusAnalyzed) {
		c.Status = StatusAnalyzed
		c.UpdatedAt = time.Now().UTC()
	}
	return result, true, nil
}

// GetResult returns the result for a classification.
func (r *MemoryRepo) GetResult(ctx context.Context, externalID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byExt[externalID]
	if !ok || c.DeletedAt != nil {
		return Result{}, ErrNotFound
	}
	res, ok := r.results[c.ID]
	if !ok {
		return Result{}, ErrResultNotFound
	}
	return *res, nil
}

var _ Repo = (*MemoryRepo)(nil)
