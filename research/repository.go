package research

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRequestNotFound signals that no research request matches the id.
	ErrRequestNotFound = errors.New("research: request not found")
	// ErrProcessNotFound signals that no process record matches the lookup.
	ErrProcessNotFound = errors.New("research: process not found")
)

// Repository handles data access for the request entity graph. Every
// parent/child relationship is navigated through an explicit finder;
// there are no ambient back-references.
type Repository interface {
	CreateRequest(ctx context.Context, tx pgx.Tx, req Request) (Request, error)
	AddProcess(ctx context.Context, tx pgx.Tx, requestID, processNumber string) (ProcessRecord, error)
	GetRequest(ctx context.Context, requestID string) (Request, error)
	FindProcessesByRequest(ctx context.Context, requestID string) ([]ProcessRecord, error)
	FindProcessByNumber(ctx context.Context, processNumber, tenantID string) (ProcessRecord, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed request repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateRequest inserts the request row inside the caller's transaction.
func (r *PGRepository) CreateRequest(ctx context.Context, tx pgx.Tx, req Request) (Request, error) {
	const insertSQL = `
		INSERT INTO research_requests (id, tenant_id, instance, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, tenant_id, instance, status, created_at, delivered_at
	`

	created, err := scanRequest(tx.QueryRow(ctx, insertSQL, req.ID, req.TenantID, req.Instance, req.Status))
	if err != nil {
		return Request{}, fmt.Errorf("research: insert request: %w", err)
	}
	return created, nil
}

// AddProcess inserts one process record under a request inside the
// caller's transaction.
func (r *PGRepository) AddProcess(ctx context.Context, tx pgx.Tx, requestID, processNumber string) (ProcessRecord, error) {
	const insertSQL = `
		INSERT INTO process_records (request_id, process_number)
		VALUES ($1, $2)
		RETURNING id, request_id, process_number, data_found
	`

	var rec ProcessRecord
	err := tx.QueryRow(ctx, insertSQL, requestID, processNumber).
		Scan(&rec.ID, &rec.RequestID, &rec.ProcessNumber, &rec.DataFound)
	if err != nil {
		return ProcessRecord{}, fmt.Errorf("research: insert process %s: %w", processNumber, err)
	}
	return rec, nil
}

// GetRequest retrieves a request by id.
func (r *PGRepository) GetRequest(ctx context.Context, requestID string) (Request, error) {
	const selectSQL = `
		SELECT id, tenant_id, instance, status, created_at, delivered_at
		FROM research_requests
		WHERE id = $1
	`

	req, err := scanRequest(r.pool.QueryRow(ctx, selectSQL, requestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, fmt.Errorf("research: get request: %w", err)
	}
	return req, nil
}

// FindProcessesByRequest lists the process records under a request.
func (r *PGRepository) FindProcessesByRequest(ctx context.Context, requestID string) ([]ProcessRecord, error) {
	const query = `
		SELECT id, request_id, process_number, data_found
		FROM process_records
		WHERE request_id = $1
		ORDER BY process_number ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("research: list processes: %w", err)
	}
	defer rows.Close()

	records := make([]ProcessRecord, 0, 8)
	for rows.Next() {
		var rec ProcessRecord
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.ProcessNumber, &rec.DataFound); err != nil {
			return nil, fmt.Errorf("research: scan process: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("research: iterate processes: %w", err)
	}
	return records, nil
}

// FindProcessByNumber resolves a process number within the acting
// tenant's own requests. Process numbers are not globally unique, so the
// lookup is scoped by owner.
func (r *PGRepository) FindProcessByNumber(ctx context.Context, processNumber, tenantID string) (ProcessRecord, error) {
	const query = `
		SELECT p.id, p.request_id, p.process_number, p.data_found
		FROM process_records p
		JOIN research_requests rr ON rr.id = p.request_id
		WHERE p.process_number = $1 AND rr.tenant_id = $2
		ORDER BY rr.created_at DESC
		LIMIT 1
	`

	var rec ProcessRecord
	err := r.pool.QueryRow(ctx, query, processNumber, tenantID).
		Scan(&rec.ID, &rec.RequestID, &rec.ProcessNumber, &rec.DataFound)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProcessRecord{}, ErrProcessNotFound
		}
		return ProcessRecord{}, fmt.Errorf("research: find process by number: %w", err)
	}
	return rec, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.TenantID, &req.Instance, &req.Status, &req.CreatedAt, &req.DeliveredAt)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}
