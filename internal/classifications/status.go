package classifications

import "fmt"

// Status is the lifecycle state of a classification. The dispatcher's
// acknowledgment and the webhook's analysis result are two distinct events:
// "accepted" means the external service agreed to analyze the image,
// "analyzed" means the result actually arrived.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusInProgress Status = "in_progress"
	StatusAccepted   Status = "accepted"
	StatusAnalyzed   Status = "analyzed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusRegistered, StatusInProgress, StatusAccepted, StatusAnalyzed, StatusFailed, StatusCanceled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown classification status %q", raw)
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAnalyzed, StatusFailed, StatusCanceled:
		return true
	case StatusRegistered, StatusInProgress, StatusAccepted:
		return false
	}
	return false
}

// CanTransitionTo reports whether the transition s -> to is legal.
// Status only moves forward. Cancellation and failure are allowed from any
// non-terminal state, and a result may arrive before the dispatcher ever
// observed an acknowledgment (the ack response can be lost while the
// service proceeds), so "analyzed" is also reachable from every
// pre-terminal state.
func (s Status) CanTransitionTo(to Status) bool {
	switch to {
	case StatusCanceled, StatusAnalyzed, StatusFailed:
		return !s.Terminal()
	}
	switch s {
	case StatusRegistered:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusAccepted
	case StatusAccepted, StatusAnalyzed, StatusFailed, StatusCanceled:
		return false
	}
	return false
}

// TransitionSources returns every status from which `to` is reachable.
// Repos use this to guard status writes at the storage layer.
func TransitionSources(to Status) []Status {
	all := []Status{StatusRegistered, StatusInProgress, StatusAccepted, StatusAnalyzed, StatusFailed, StatusCanceled}
	var out []Status
	for _, from := range all {
		if from.CanTransitionTo(to) {
			out = append(out, from)
		}
	}
	return out
}
