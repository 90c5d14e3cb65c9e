package classifications

import "time"

// Classification represents a submitted grain image awaiting or having
// undergone external analysis.
type Classification struct {
	ID          int64      `json:"-"`
	ExternalID  string     `json:"id"`
	UserID      string     `json:"userId"`
	CategoryID  string     `json:"categoryId"`
	CategoryTag string     `json:"categoryTag,omitempty"`
	Status      Status     `json:"status"`
	StorageKey  string     `json:"-"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-"`
	Result      *Result    `json:"result,omitempty"`
}

// Result holds the analysis output delivered asynchronously by the external
// service. A classification has at most one result.
type Result struct {
	ID               int64          `json:"-"`
	ExternalID       string         `json:"id"`
	ClassificationID int64          `json:"-"`
	Payload          map[string]any `json:"payload"`
	Counts           GrainCounts    `json:"counts"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// GrainCounts are the typed per-grade counts decomposed from the raw result
// payload when the analysis service provides them.
type GrainCounts struct {
	Good         int `json:"good"`
	BadDetection int `json:"badDetection"`
	Unknown      int `json:"unknown"`
	Burned       int `json:"burned"`
	Greenish     int `json:"greenish"`
	Small        int `json:"small"`
}

// CountsFromPayload extracts the typed counts from a raw result payload.
// Missing or non-numeric fields are left at zero.
func CountsFromPayload(payload map[string]any) GrainCounts {
	return GrainCounts{
		Good:         intField(payload, "good"),
		BadDetection: intField(payload, "bad_detection"),
		Unknown:      intField(payload, "unknown"),
		Burned:       intField(payload, "burned"),
		Greenish:     intField(payload, "greenish"),
		Small:        intField(payload, "small"),
	}
}

func intField(payload map[string]any, key string) int {
	raw, ok := payload[key]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}
