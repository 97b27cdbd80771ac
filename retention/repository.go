// Package retention purges delivered research requests past their
// retention window, cascading across the entity graph and the external
// object store without leaving orphaned database rows.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/research"
)

// Document is an initial document row scheduled for purge.
type Document struct {
	ID         string
	StorageRef *string
}

// Repository defines the reads and cascading deletes used by the sweeper.
type Repository interface {
	// ListExpired returns ids of DELIVERED requests delivered before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]string, error)
	// ListDocuments returns the request's document rows with their
	// stored references.
	ListDocuments(ctx context.Context, requestID string) ([]Document, error)
	// DeleteRequestGraph removes the request and every descendant row
	// inside the caller's transaction, children first.
	DeleteRequestGraph(ctx context.Context, tx pgx.Tx, requestID string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed retention repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `
		SELECT id
		FROM research_requests
		WHERE status = $1 AND delivered_at < $2
		ORDER BY delivered_at ASC
	`

	rows, err := r.pool.Query(ctx, query, research.StatusDelivered, cutoff)
	if err != nil {
		return nil, fmt.Errorf("retention: list expired: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("retention: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention: iterate expired: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) ListDocuments(ctx context.Context, requestID string) ([]Document, error) {
	const query = `
		SELECT d.id, d.storage_ref
		FROM initial_documents d
		JOIN process_records p ON p.id = d.process_id
		WHERE p.request_id = $1
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("retention: list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, 8)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.StorageRef); err != nil {
			return nil, fmt.Errorf("retention: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retention: iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteRequestGraph deletes children before parents so no foreign key
// is ever dangling mid-transaction.
func (r *PGRepository) DeleteRequestGraph(ctx context.Context, tx pgx.Tx, requestID string) error {
	statements := []string{
		`DELETE FROM initial_documents d USING process_records p
		 WHERE d.process_id = p.id AND p.request_id = $1`,
		`DELETE FROM parties pa USING process_records p
		 WHERE pa.process_id = p.id AND p.request_id = $1`,
		`DELETE FROM attorneys a USING process_records p
		 WHERE a.process_id = p.id AND p.request_id = $1`,
		`DELETE FROM progress_entries pe USING process_records p
		 WHERE pe.process_id = p.id AND p.request_id = $1`,
		`DELETE FROM cover_sheets c USING process_records p
		 WHERE c.process_id = p.id AND p.request_id = $1`,
		`DELETE FROM process_records WHERE request_id = $1`,
		`DELETE FROM research_requests WHERE id = $1`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, requestID); err != nil {
			return fmt.Errorf("retention: delete graph: %w", err)
		}
	}
	return nil
}
