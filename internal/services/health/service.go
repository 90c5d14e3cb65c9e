package health

import (
	"context"
	"database/sql"
	"time"
)

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service.
func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// Status reports process health and the database backend state. With no
// database configured the repos are in-memory and still healthy.
func (s *Service) Status(ctx context.Context) map[string]any {
	out := map[string]any{"ok": true, "database": "memory"}
	if s.DB == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		out["ok"] = false
		out["database"] = "error"
		return out
	}
	out["database"] = "ok"
	return out
}
