package classifications

import "context"

// Repo defines persistence operations for classifications and their results.
type Repo interface {
	Create(ctx context.Context, c Classification) (Classification, error)
	GetByExternalID(ctx context.Context, externalID string) (Classification, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Classification, error)

	// Transition moves the classification to the given status, enforcing
	// the transition table. Returns the updated classification or
	// ErrInvalidTransition when the current status does not allow the move.
	Transition(ctx context.Context, externalID string, to Status) (Classification, error)

	// SoftDelete marks the classification and its result (if any) deleted.
	SoftDelete(ctx context.Context, externalID string) error

	// CreateResult stores the analysis result for the classification with
	// the given external ID and, when the current status allows it, moves
	// the classification to StatusAnalyzed. The insert is serialized on a
	// one-result-per-classification constraint: when a result already
	// exists the stored one is returned with created == false and nothing
	// is written.
	CreateResult(ctx context.Context, externalID string, result Result) (stored Result, created bool, err error)

	// GetResult returns the result for a classification, or ErrResultNotFound.
	GetResult(ctx context.Context, externalID string) (Result, error)
}
