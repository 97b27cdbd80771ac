package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caseflow/research"
)

var (
	// ErrUnknownRequest signals a result group referencing a request that
	// does not exist. The group is skipped, never created here.
	ErrUnknownRequest = errors.New("reconcile: unknown request")
	// ErrUnknownProcess signals a result group referencing a process that
	// was not part of the original submission.
	ErrUnknownProcess = errors.New("reconcile: unknown process")
)

// Repository defines the per-group data access executed inside the
// import transaction. Every insert is guarded by a natural-key existence
// check so re-running the same import applies nothing new.
type Repository interface {
	RequestExists(ctx context.Context, tx pgx.Tx, requestID string) (bool, error)
	FindProcessID(ctx context.Context, tx pgx.Tx, requestID, processNumber string) (string, error)

	HasCoverSheet(ctx context.Context, tx pgx.Tx, processID string) (bool, error)
	InsertCoverSheet(ctx context.Context, tx pgx.Tx, params CoverSheetParams) error

	HasDocument(ctx context.Context, tx pgx.Tx, processID, storageRef string) (bool, error)
	InsertDocument(ctx context.Context, tx pgx.Tx, processID, storageRef string) error

	HasParty(ctx context.Context, tx pgx.Tx, processID, role, name string) (bool, error)
	InsertParty(ctx context.Context, tx pgx.Tx, processID, role, name string) error

	HasAttorney(ctx context.Context, tx pgx.Tx, processID, role, name string) (bool, error)
	InsertAttorney(ctx context.Context, tx pgx.Tx, processID, role, name, barRegistration string) error

	HasProgress(ctx context.Context, tx pgx.Tx, processID string, occurredAt time.Time, description string) (bool, error)
	InsertProgress(ctx context.Context, tx pgx.Tx, processID string, occurredAt time.Time, description string) error

	MarkDataFound(ctx context.Context, tx pgx.Tx, processID string) error
	CompleteRequest(ctx context.Context, tx pgx.Tx, requestID string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct{}

// NewRepository creates the PostgreSQL-backed reconciliation repository.
func NewRepository() *PGRepository {
	return &PGRepository{}
}

func (r *PGRepository) RequestExists(ctx context.Context, tx pgx.Tx, requestID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM research_requests WHERE id = $1)`, requestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: request exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) FindProcessID(ctx context.Context, tx pgx.Tx, requestID, processNumber string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id FROM process_records
		WHERE request_id = $1 AND process_number = $2
	`, requestID, processNumber).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownProcess
		}
		return "", fmt.Errorf("reconcile: find process: %w", err)
	}
	return id, nil
}

func (r *PGRepository) HasCoverSheet(ctx context.Context, tx pgx.Tx, processID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cover_sheets WHERE process_id = $1)`, processID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: cover sheet exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) InsertCoverSheet(ctx context.Context, tx pgx.Tx, params CoverSheetParams) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO cover_sheets (process_id, case_value, class_code, legal_area)
		VALUES ($1, $2, $3, $4)
	`, params.ProcessID, params.CaseValue, params.ClassCode, params.LegalArea)
	if err != nil {
		return fmt.Errorf("reconcile: insert cover sheet: %w", err)
	}
	return nil
}

func (r *PGRepository) HasDocument(ctx context.Context, tx pgx.Tx, processID, storageRef string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM initial_documents WHERE process_id = $1 AND storage_ref = $2)
	`, processID, storageRef).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: document exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) InsertDocument(ctx context.Context, tx pgx.Tx, processID, storageRef string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO initial_documents (process_id, storage_ref, found)
		VALUES ($1, $2, true)
	`, processID, storageRef)
	if err != nil {
		return fmt.Errorf("reconcile: insert document: %w", err)
	}
	return nil
}

func (r *PGRepository) HasParty(ctx context.Context, tx pgx.Tx, processID, role, name string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM parties WHERE process_id = $1 AND role = $2 AND name = $3)
	`, processID, role, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: party exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) InsertParty(ctx context.Context, tx pgx.Tx, processID, role, name string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO parties (process_id, role, name) VALUES ($1, $2, $3)
	`, processID, role, name)
	if err != nil {
		return fmt.Errorf("reconcile: insert party: %w", err)
	}
	return nil
}

func (r *PGRepository) HasAttorney(ctx context.Context, tx pgx.Tx, processID, role, name string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM attorneys WHERE process_id = $1 AND role = $2 AND name = $3)
	`, processID, role, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: attorney exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) InsertAttorney(ctx context.Context, tx pgx.Tx, processID, role, name, barRegistration string) error {
	var bar *string
	if barRegistration != "" {
		bar = &barRegistration
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO attorneys (process_id, role, name, bar_registration) VALUES ($1, $2, $3, $4)
	`, processID, role, name, bar)
	if err != nil {
		return fmt.Errorf("reconcile: insert attorney: %w", err)
	}
	return nil
}

func (r *PGRepository) HasProgress(ctx context.Context, tx pgx.Tx, processID string, occurredAt time.Time, description string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM progress_entries WHERE process_id = $1 AND occurred_at = $2 AND description = $3)
	`, processID, occurredAt, description).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reconcile: progress exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) InsertProgress(ctx context.Context, tx pgx.Tx, processID string, occurredAt time.Time, description string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO progress_entries (process_id, occurred_at, description) VALUES ($1, $2, $3)
	`, processID, occurredAt, description)
	if err != nil {
		return fmt.Errorf("reconcile: insert progress: %w", err)
	}
	return nil
}

func (r *PGRepository) MarkDataFound(ctx context.Context, tx pgx.Tx, processID string) error {
	_, err := tx.Exec(ctx, `UPDATE process_records SET data_found = true WHERE id = $1`, processID)
	if err != nil {
		return fmt.Errorf("reconcile: mark data found: %w", err)
	}
	return nil
}

// CompleteRequest advances the request to COMPLETED. The status guard
// keeps the lifecycle forward-only: a request already COMPLETED or
// DELIVERED is left untouched.
func (r *PGRepository) CompleteRequest(ctx context.Context, tx pgx.Tx, requestID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE research_requests
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4)
	`, research.StatusCompleted, requestID, research.StatusPending, research.StatusDispatched)
	if err != nil {
		return fmt.Errorf("reconcile: complete request: %w", err)
	}
	return nil
}
