package feedback

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("feedback not found")

type Repo interface {
	Create(ctx context.Context, fb Feedback) (Feedback, error)
	GetByID(ctx context.Context, feedbackID string) (Feedback, error)
	List(ctx context.Context, onlyUnresolved bool, limit, offset int) ([]Feedback, error)
	SetResolved(ctx context.Context, feedbackID string, resolved bool) (Feedback, error)
	SoftDelete(ctx context.Context, feedbackID string) error
}
