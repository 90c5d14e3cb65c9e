package classifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grainlab-backend/internal/grainai"
	"grainlab-backend/internal/shared/metrics"
	"grainlab-backend/internal/shared/telemetry"
)

// Dispatcher notifies the external analysis service of a registered
// classification and records whether the request was accepted.
//
// Dispatch runs under at-least-once delivery: the same classification may be
// handed to it more than once. Re-dispatch of anything past in_progress is a
// no-op; a transport or protocol failure ends in a persisted failed status,
// never in an error escaping to the queue runner. Only storage failures
// propagate so the message is redelivered.
type Dispatcher struct {
	Repo          Repo
	Client        grainai.Client
	CallbackURL   string
	PublicBaseURL string
}

// Dispatch sends one classification to the analysis service.
func (d *Dispatcher) Dispatch(ctx context.Context, externalID string) error {
	if d.Repo == nil || d.Client == nil {
		return errors.New("dispatcher not configured")
	}

	c, err := d.Repo.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			telemetry.Error("dispatch.unknown_classification", map[string]any{
				"request_id":        requestIDFromContext(ctx),
				"classification_id": externalID,
			})
			return nil
		}
		return fmt.Errorf("classification lookup: %w", err)
	}

	switch c.Status {
	case StatusRegistered, StatusInProgress:
		// proceed; in_progress means a prior attempt died before the ack
	case StatusAccepted, StatusAnalyzed, StatusFailed, StatusCanceled:
		telemetry.Info("dispatch.skipped", map[string]any{
			"request_id":        requestIDFromContext(ctx),
			"classification_id": c.ExternalID,
			"status":            string(c.Status),
		})
		return nil
	}

	if c.Status == StatusRegistered {
		if _, err := d.Repo.Transition(ctx, c.ExternalID, StatusInProgress); err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
				// concurrent dispatcher or user cancellation won the race
				return nil
			}
			return fmt.Errorf("mark in_progress: %w", err)
		}
	}

	metrics.IncDispatchStarted()
	startedAt := time.Now().UTC()

	req := grainai.EnqueueRequest{
		CallbackURL: d.CallbackURL,
		Payload: grainai.EnqueuePayload{
			ExternalID:   c.ExternalID,
			ImageURL:     d.imageURL(c.StorageKey),
			SeedCategory: c.CategoryTag,
		},
	}

	ack, err := d.Client.Enqueue(ctx, req)
	durationMs := float64(time.Since(startedAt).Microseconds()) / 1000.0
	metrics.ObserveDispatchDurationMs(durationMs)

	if err != nil {
		return d.fail(ctx, c.ExternalID, durationMs, err)
	}
	if !ack.Status {
		return d.fail(ctx, c.ExternalID, durationMs, fmt.Errorf("analysis service declined: %s", ack.Message))
	}

	if _, err := d.Repo.Transition(ctx, c.ExternalID, StatusAccepted); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			// canceled or already analyzed while the call was in flight
			return nil
		}
		return fmt.Errorf("mark accepted: %w", err)
	}

	metrics.IncDispatchAccepted()
	telemetry.Info("dispatch.accepted", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"classification_id": c.ExternalID,
		"status_transition": "in_progress->accepted",
		"duration_ms":       durationMs,
	})
	return nil
}

// fail records a failed dispatch. The failure itself is swallowed; only a
// failure to persist the failed status is returned.
func (d *Dispatcher) fail(ctx context.Context, externalID string, durationMs float64, cause error) error {
	metrics.IncDispatchFailed()
	telemetry.Error("dispatch.failed", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"classification_id": externalID,
		"status_transition": "in_progress->failed",
		"duration_ms":       durationMs,
		"error":             sanitizeError(cause),
	})
	if _, err := d.Repo.Transition(context.WithoutCancel(ctx), externalID, StatusFailed); err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (d *Dispatcher) imageURL(storageKey string) string {
	base := strings.TrimRight(d.PublicBaseURL, "/")
	key := strings.TrimLeft(strings.ReplaceAll(storageKey, "\\", "/"), "/")
	return base + "/files/" + key
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
