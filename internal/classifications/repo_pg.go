package classifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const classificationColumns = `
c.id, c.external_id, c.user_id, c.category_id, COALESCE(cat.tag, ''),
c.status, c.storage_key, c.message, c.created_at, c.updated_at,
r.id, r.external_id, r.classification_id, r.payload,
r.good, r.bad_detection, r.unknown, r.burned, r.greenish, r.small, r.created_at`

const classificationJoins = `
FROM classifications c
LEFT JOIN categories cat ON cat.id = c.category_id
LEFT JOIN classification_results r ON r.classification_id = c.id AND r.deleted_at IS NULL`

// Create inserts a new classification and returns it with its row id assigned.
func (r *PGRepo) Create(ctx context.Context, c Classification) (Classification, error) {
	const query = `
INSERT INTO classifications (external_id, user_id, category_id, status, storage_key, message, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING id`
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	err := r.DB.QueryRowContext(ctx, query,
		c.ExternalID,
		c.UserID,
		c.CategoryID,
		string(c.Status),
		c.StorageKey,
		c.Message,
		c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return Classification{}, fmt.Errorf("insert classification: %w", err)
	}
	return c, nil
}

// GetByExternalID returns a live classification with its result, if any.
func (r *PGRepo) GetByExternalID(ctx context.Context, externalID string) (Classification, error) {
	query := `SELECT ` + classificationColumns + classificationJoins + `
WHERE c.external_id = $1 AND c.deleted_at IS NULL
LIMIT 1`
	c, err := scanClassification(r.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Classification{}, ErrNotFound
		}
		return Classification{}, err
	}
	return c, nil
}

// ListByUser returns a user's classifications newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Classification, error) {
	query := `SELECT ` + classificationColumns + classificationJoins + `
WHERE c.user_id = $1 AND c.deleted_at IS NULL
ORDER BY c.created_at DESC, c.id DESC
LIMIT $2 OFFSET $3`
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Transition moves the classification to the given status. The allowed source
// states are enforced in the UPDATE itself so concurrent writers serialize on
// the row.
func (r *PGRepo) Transition(ctx context.Context, externalID string, to Status) (Classification, error) {
	sources := TransitionSources(to)
	if len(sources) == 0 {
		return Classification{}, ErrInvalidTransition
	}
	placeholders := make([]string, len(sources))
	args := []any{string(to), externalID}
	for i, s := range sources {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, string(s))
	}
	query := fmt.Sprintf(`
UPDATE classifications
SET status = $1, updated_at = now()
WHERE external_id = $2 AND deleted_at IS NULL AND status IN (%s)`, strings.Join(placeholders, ", "))

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return Classification{}, fmt.Errorf("transition classification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Classification{}, err
	}
	if affected == 0 {
		// Distinguish a missing row from a disallowed transition.
		if _, err := r.GetByExternalID(ctx, externalID); err != nil {
			return Classification{}, err
		}
		return Classification{}, ErrInvalidTransition
	}
	return r.GetByExternalID(ctx, externalID)
}

// SoftDelete marks the classification and its result deleted.
func (r *PGRepo) SoftDelete(ctx context.Context, externalID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
UPDATE classifications SET deleted_at = now(), updated_at = now()
WHERE external_id = $1 AND deleted_at IS NULL
RETURNING id`, externalID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("soft delete classification: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE classification_results SET deleted_at = now()
WHERE classification_id = $1 AND deleted_at IS NULL`, id); err != nil {
		return fmt.Errorf("soft delete result: %w", err)
	}

	return tx.Commit()
}

// CreateResult stores the analysis result inside a transaction. Concurrent
// deliveries for the same classification serialize on the row lock and the
// unique constraint; only the first insert wins.
func (r *PGRepo) CreateResult(ctx context.Context, externalID string, result Result) (Result, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, false, err
	}
	defer tx.Rollback()

	var (
		classificationID int64
		rawStatus        string
	)
	err = tx.QueryRowContext(ctx, `
SELECT id, status FROM classifications
WHERE external_id = $1 AND deleted_at IS NULL
FOR UPDATE`, externalID).Scan(&classificationID, &rawStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, false, ErrNotFound
		}
		return Result{}, false, fmt.Errorf("lock classification: %w", err)
	}

	payload, err := json.Marshal(result.Payload)
	if err != nil {
		return Result{}, false, fmt.Errorf("marshal result payload: %w", err)
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	var insertedID sql.NullInt64
	err = tx.QueryRowContext(ctx, `
INSERT INTO classification_results (external_id, classification_id, payload, good, bad_detection, unknown, burned, greenish, small, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (classification_id) DO NOTHING
RETURNING id`,
		result.ExternalID,
		classificationID,
		payload,
		result.Counts.Good,
		result.Counts.BadDetection,
		result.Counts.Unknown,
		result.Counts.Burned,
		result.Counts.Greenish,
		result.Counts.Small,
		result.CreatedAt,
	).Scan(&insertedID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Result{}, false, fmt.Errorf("insert result: %w", err)
	}

	if !insertedID.Valid {
		existing, err := getResultByClassificationID(ctx, tx, classificationID)
		if err != nil {
			return Result{}, false, err
		}
		if err := tx.Commit(); err != nil {
			return Result{}, false, err
		}
		return existing, false, nil
	}

	result.ID = insertedID.Int64
	result.ClassificationID = classificationID

	status, err := ParseStatus(rawStatus)
	if err != nil {
		return Result{}, false, err
	}
	if status.CanTransitionTo(StatusAnalyzed) {
		if _, err := tx.ExecContext(ctx, `
UPDATE classifications SET status = $1, updated_at = now() WHERE id = $2`,
			string(StatusAnalyzed), classificationID); err != nil {
			return Result{}, false, fmt.Errorf("mark analyzed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, false, err
	}
	return result, true, nil
}

// GetResult returns the result for a classification.
func (r *PGRepo) GetResult(ctx context.Context, externalID string) (Result, error) {
	var classificationID int64
	err := r.DB.QueryRowContext(ctx, `
SELECT id FROM classifications WHERE external_id = $1 AND deleted_at IS NULL`, externalID).Scan(&classificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	return getResultByClassificationID(ctx, r.DB, classificationID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getResultByClassificationID(ctx context.Context, q queryRower, classificationID int64) (Result, error) {
	const query = `
SELECT id, external_id, classification_id, payload, good, bad_detection, unknown, burned, greenish, small, created_at
FROM classification_results
WHERE classification_id = $1 AND deleted_at IS NULL
LIMIT 1`
	var (
		res     Result
		payload []byte
	)
	err := q.QueryRowContext(ctx, query, classificationID).Scan(
		&res.ID,
		&res.ExternalID,
		&res.ClassificationID,
		&payload,
		&res.Counts.Good,
		&res.Counts.BadDetection,
		&res.Counts.Unknown,
		&res.Counts.Burned,
		&res.Counts.Greenish,
		&res.Counts.Small,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrResultNotFound
		}
		return Result{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &res.Payload); err != nil {
			res.Payload = nil
		}
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClassification(row rowScanner) (Classification, error) {
	var (
		c          Classification
		rawStatus  string
		resID      sql.NullInt64
		resExtID   sql.NullString
		resClassID sql.NullInt64
		resPayload []byte
		good       sql.NullInt64
		badDet     sql.NullInt64
		unknown    sql.NullInt64
		burned     sql.NullInt64
		greenish   sql.NullInt64
		small      sql.NullInt64
		resCreated sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.ExternalID,
		&c.UserID,
		&c.CategoryID,
		&c.CategoryTag,
		&rawStatus,
		&c.StorageKey,
		&c.Message,
		&c.CreatedAt,
		&c.UpdatedAt,
		&resID,
		&resExtID,
		&resClassID,
		&resPayload,
		&good,
		&badDet,
		&unknown,
		&burned,
		&greenish,
		&small,
		&resCreated,
	)
	if err != nil {
		return Classification{}, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return Classification{}, err
	}
	c.Status = status
	if resID.Valid {
		res := Result{
			ID:               resID.Int64,
			ExternalID:       resExtID.String,
			ClassificationID: resClassID.Int64,
			Counts: GrainCounts{
				Good:         int(good.Int64),
				BadDetection: int(badDet.Int64),
				Unknown:      int(unknown.Int64),
				Burned:       int(burned.Int64),
				Greenish:     int(greenish.Int64),
				Small:        int(small.Int64),
			},
		}
		if resCreated.Valid {
			res.CreatedAt = resCreated.Time
		}
		if len(resPayload) > 0 {
			if err := json.Unmarshal(resPayload, &res.Payload); err != nil {
				res.Payload = nil
			}
		}
		c.Result = &res
	}
	return c, nil
}

var _ Repo = (*PGRepo)(nil)
