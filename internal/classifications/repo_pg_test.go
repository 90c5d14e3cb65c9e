package classifications

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateAssignsRowID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	c := Classification{
		ExternalID: "cl-1",
		UserID:     "user-1",
		CategoryID: "cat-1",
		Status:     StatusRegistered,
		StorageKey: "images/user-1/photo.jpg",
		Message:    "front-lit sample",
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectQuery("INSERT INTO classifications").
		WithArgs(
			c.ExternalID,
			c.UserID,
			c.CategoryID,
			string(StatusRegistered),
			c.StorageKey,
			c.Message,
			sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	got, err := repo.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 7 {
		t.Fatalf("ID = %d, want 7", got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByExternalIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT").
		WithArgs("cl-missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByExternalID(context.Background(), "cl-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionGuardsSourceStates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	// accepted is only reachable from in_progress
	mock.ExpectExec("UPDATE classifications").
		WithArgs(string(StatusAccepted), "cl-1", string(StatusInProgress)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resultRows := sqlmock.NewRows([]string{
		"id", "external_id", "user_id", "category_id", "tag",
		"status", "storage_key", "message", "created_at", "updated_at",
		"r_id", "r_external_id", "r_classification_id", "r_payload",
		"good", "bad_detection", "unknown", "burned", "greenish", "small", "r_created_at",
	}).AddRow(
		int64(7), "cl-1", "user-1", "cat-1", "wheat",
		string(StatusAccepted), "images/user-1/photo.jpg", "", time.Now().UTC(), time.Now().UTC(),
		nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT").WithArgs("cl-1").WillReturnRows(resultRows)

	got, err := repo.Transition(context.Background(), "cl-1", StatusAccepted)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("status = %s, want accepted", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionRejectedWhenRowUnchanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE classifications").
		WithArgs(string(StatusAccepted), "cl-1", string(StatusInProgress)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	existingRows := sqlmock.NewRows([]string{
		"id", "external_id", "user_id", "category_id", "tag",
		"status", "storage_key", "message", "created_at", "updated_at",
		"r_id", "r_external_id", "r_classification_id", "r_payload",
		"good", "bad_detection", "unknown", "burned", "greenish", "small", "r_created_at",
	}).AddRow(
		int64(7), "cl-1", "user-1", "cat-1", "wheat",
		string(StatusCanceled), "images/user-1/photo.jpg", "", time.Now().UTC(), time.Now().UTC(),
		nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT").WithArgs("cl-1").WillReturnRows(existingRows)

	_, err = repo.Transition(context.Background(), "cl-1", StatusAccepted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateResultDuplicateReturnsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status FROM classifications").
		WithArgs("cl-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(int64(7), string(StatusAnalyzed)))
	mock.ExpectQuery("INSERT INTO classification_results").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, external_id, classification_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "external_id", "classification_id", "payload",
			"good", "bad_detection", "unknown", "burned", "greenish", "small", "created_at",
		}).AddRow(int64(9), "res-1", int64(7), []byte(`{"good":120}`), 120, 3, 1, 0, 7, 2, time.Now().UTC()))
	mock.ExpectCommit()

	stored, created, err := repo.CreateResult(context.Background(), "cl-1", Result{
		ExternalID: "res-2",
		Payload:    map[string]any{"good": 120},
	})
	if err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if created {
		t.Fatal("created = true, want false for duplicate delivery")
	}
	if stored.ExternalID != "res-1" {
		t.Fatalf("stored external id = %q, want the existing result", stored.ExternalID)
	}
	if stored.Counts.Good != 120 {
		t.Fatalf("counts = %+v", stored.Counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateResultMarksAnalyzed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, status FROM classifications").
		WithArgs("cl-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(int64(7), string(StatusAccepted)))
	mock.ExpectQuery("INSERT INTO classification_results").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("UPDATE classifications SET status").
		WithArgs(string(StatusAnalyzed), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stored, created, err := repo.CreateResult(context.Background(), "cl-1", Result{
		ExternalID: "res-1",
		Payload:    map[string]any{"good": 120},
		Counts:     GrainCounts{Good: 120},
	})
	if err != nil {
		t.Fatalf("CreateResult: %v", err)
	}
	if !created {
		t.Fatal("created = false, want true")
	}
	if stored.ID != 11 || stored.ClassificationID != 7 {
		t.Fatalf("stored = %+v", stored)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
