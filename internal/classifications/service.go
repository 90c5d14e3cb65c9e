package classifications

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"grainlab-backend/internal/categories"
	"grainlab-backend/internal/queue"
	"grainlab-backend/internal/shared/storage/object"
	"grainlab-backend/internal/shared/telemetry"
)

// Service contains business logic for classifications.
type Service struct {
	Repo       Repo
	Categories categories.Repo
	Store      object.ObjectStore
	Queue      queue.Client
	Dispatcher *Dispatcher
}

// Create registers a new classification for the uploaded grain image and
// hands it to the dispatch pipeline. The classification is persisted as
// registered before any dispatch work starts, so a crash between the two
// leaves a record the worker can pick up again.
func (s *Service) Create(ctx context.Context, userID, categoryID, fileName string, image io.Reader, message string) (Classification, error) {
	if userID == "" || categoryID == "" {
		return Classification{}, errors.New("userID and categoryID are required")
	}

	category, err := s.Categories.GetByID(ctx, categoryID)
	if err != nil {
		return Classification{}, err
	}
	if category.DeletedAt != nil {
		return Classification{}, categories.ErrNotFound
	}

	storageKey, _, _, err := s.Store.Save(ctx, userID, fileName, image)
	if err != nil {
		return Classification{}, err
	}

	classification := Classification{
		ExternalID:  uuid.NewString(),
		UserID:      userID,
		CategoryID:  category.ID,
		CategoryTag: category.Tag,
		Status:      StatusRegistered,
		StorageKey:  storageKey,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.Repo.Create(ctx, classification)
	if err != nil {
		return Classification{}, err
	}

	s.enqueueDispatch(ctx, created.ExternalID)

	return created, nil
}

// enqueueDispatch hands the classification to the queue, falling back to an
// in-process dispatch when no queue is configured or the send fails.
func (s *Service) enqueueDispatch(ctx context.Context, externalID string) {
	if s.Queue != nil {
		msg := queue.Message{
			ClassificationID: externalID,
			RequestID:        requestIDFromContext(ctx),
			EnqueuedAt:       time.Now().UTC().Format(time.RFC3339),
			Version:          1,
		}
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			telemetry.Info("classification.enqueued", map[string]any{
				"request_id":        msg.RequestID,
				"classification_id": externalID,
			})
			return
		}
		telemetry.Error("classification.enqueue_failed", map[string]any{
			"request_id":        msg.RequestID,
			"classification_id": externalID,
			"error":             sanitizeError(err),
		})
	}
	if s.Dispatcher != nil {
		dispatcher := s.Dispatcher
		go func(ctx context.Context) {
			if err := dispatcher.Dispatch(ctx, externalID); err != nil {
				telemetry.Error("classification.dispatch_failed", map[string]any{
					"request_id":        requestIDFromContext(ctx),
					"classification_id": externalID,
					"error":             sanitizeError(err),
				})
			}
		}(backgroundWithRequestID(ctx))
	}
}

// Get returns a classification by its public ID.
func (s *Service) Get(ctx context.Context, externalID string) (Classification, error) {
	if externalID == "" {
		return Classification{}, errors.New("classificationID is required")
	}
	return s.Repo.GetByExternalID(ctx, externalID)
}

// List returns classifications for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Classification, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Cancel marks a classification canceled. When userID is non-empty the
// caller must own the classification. Terminal classifications cannot be
// canceled and return ErrInvalidTransition.
func (s *Service) Cancel(ctx context.Context, userID, externalID string) (Classification, error) {
	c, err := s.Repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return Classification{}, err
	}
	if userID != "" && c.UserID != userID {
		return Classification{}, ErrNotOwner
	}
	return s.Repo.Transition(ctx, externalID, StatusCanceled)
}

// Delete soft-deletes a classification and its result. When userID is
// non-empty the caller must own the classification.
func (s *Service) Delete(ctx context.Context, userID, externalID string) error {
	c, err := s.Repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if userID != "" && c.UserID != userID {
		return ErrNotOwner
	}
	return s.Repo.SoftDelete(ctx, externalID)
}
