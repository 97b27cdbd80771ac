package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/research"
)

var (
	// ErrForbidden signals a valid claim acting on another tenant's data.
	ErrForbidden = errors.New("delivery: forbidden")
)

// ProcessOverview is a process record joined with its optional cover sheet.
type ProcessOverview struct {
	ProcessID     string
	ProcessNumber string
	DataFound     bool
	CaseValue     *float64
	ClassCode     *string
	LegalArea     *string
}

// DocumentRow is an initial document row as stored.
type DocumentRow struct {
	ID              string
	ProcessID       string
	StorageRef      *string
	Found           bool
	InitialPetition bool
}

// Repository defines the reads and the delivery stamp used by the gateway.
type Repository interface {
	GetRequest(ctx context.Context, requestID string) (research.Request, error)
	// StampDelivered performs the COMPLETED -> DELIVERED flip. It must be
	// atomic and apply at most once; when another reader already stamped
	// the request it reports false with no error.
	StampDelivered(ctx context.Context, requestID string) (bool, error)
	ListProcessOverviews(ctx context.Context, requestID string) ([]ProcessOverview, error)
	PartiesByProcess(ctx context.Context, processID string) ([]research.Party, error)
	AttorneysByProcess(ctx context.Context, processID string) ([]research.Attorney, error)
	DocumentsByRequest(ctx context.Context, requestID string) ([]DocumentRow, error)
	FindProcessByNumber(ctx context.Context, processNumber string) (research.ProcessRecord, error)
	ProgressByProcess(ctx context.Context, processID string) ([]research.ProgressEntry, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed delivery repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetRequest(ctx context.Context, requestID string) (research.Request, error) {
	const query = `
		SELECT id, tenant_id, instance, status, created_at, delivered_at
		FROM research_requests
		WHERE id = $1
	`

	var req research.Request
	err := r.pool.QueryRow(ctx, query, requestID).
		Scan(&req.ID, &req.TenantID, &req.Instance, &req.Status, &req.CreatedAt, &req.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return research.Request{}, research.ErrRequestNotFound
		}
		return research.Request{}, fmt.Errorf("delivery: get request: %w", err)
	}
	return req, nil
}

// StampDelivered flips COMPLETED to DELIVERED and stamps the delivery
// timestamp in one statement. The status guard in the WHERE clause
// serializes concurrent first readers: exactly one update wins, the
// rest match zero rows and leave the existing timestamp untouched.
func (r *PGRepository) StampDelivered(ctx context.Context, requestID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE research_requests
		SET status = $1, delivered_at = now()
		WHERE id = $2 AND status = $3
	`, research.StatusDelivered, requestID, research.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("delivery: stamp delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PGRepository) ListProcessOverviews(ctx context.Context, requestID string) ([]ProcessOverview, error) {
	const query = `
		SELECT p.id, p.process_number, p.data_found, c.case_value, c.class_code, c.legal_area
		FROM process_records p
		LEFT JOIN cover_sheets c ON c.process_id = p.id
		WHERE p.request_id = $1
		ORDER BY p.process_number ASC
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list process overviews: %w", err)
	}
	defer rows.Close()

	overviews := make([]ProcessOverview, 0, 8)
	for rows.Next() {
		var o ProcessOverview
		if err := rows.Scan(&o.ProcessID, &o.ProcessNumber, &o.DataFound, &o.CaseValue, &o.ClassCode, &o.LegalArea); err != nil {
			return nil, fmt.Errorf("delivery: scan overview: %w", err)
		}
		overviews = append(overviews, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery: iterate overviews: %w", err)
	}
	return overviews, nil
}

func (r *PGRepository) PartiesByProcess(ctx context.Context, processID string) ([]research.Party, error) {
	const query = `
		SELECT id, process_id, role, name
		FROM parties
		WHERE process_id = $1
		ORDER BY role, name
	`

	rows, err := r.pool.Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list parties: %w", err)
	}
	defer rows.Close()

	parties := make([]research.Party, 0, 4)
	for rows.Next() {
		var p research.Party
		if err := rows.Scan(&p.ID, &p.ProcessID, &p.Role, &p.Name); err != nil {
			return nil, fmt.Errorf("delivery: scan party: %w", err)
		}
		parties = append(parties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery: iterate parties: %w", err)
	}
	return parties, nil
}

func (r *PGRepository) AttorneysByProcess(ctx context.Context, processID string) ([]research.Attorney, error) {
	const query = `
		SELECT id, process_id, role, name, bar_registration
		FROM attorneys
		WHERE process_id = $1
		ORDER BY role, name
	`

	rows, err := r.pool.Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list attorneys: %w", err)
	}
	defer rows.Close()

	attorneys := make([]research.Attorney, 0, 4)
	for rows.Next() {
		var a research.Attorney
		if err := rows.Scan(&a.ID, &a.ProcessID, &a.Role, &a.Name, &a.BarRegistration); err != nil {
			return nil, fmt.Errorf("delivery: scan attorney: %w", err)
		}
		attorneys = append(attorneys, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery: iterate attorneys: %w", err)
	}
	return attorneys, nil
}

func (r *PGRepository) DocumentsByRequest(ctx context.Context, requestID string) ([]DocumentRow, error) {
	const query = `
		SELECT d.id, d.process_id, d.storage_ref, d.found, d.initial_petition
		FROM initial_documents d
		JOIN process_records p ON p.id = d.process_id
		WHERE p.request_id = $1
		ORDER BY p.process_number, d.id
	`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]DocumentRow, 0, 8)
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.ProcessID, &d.StorageRef, &d.Found, &d.InitialPetition); err != nil {
			return nil, fmt.Errorf("delivery: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery: iterate documents: %w", err)
	}
	return docs, nil
}

// FindProcessByNumber resolves a process number to its most recent
// record. Ownership is checked by the service against the parent
// request, so a hit on another tenant's process yields Forbidden rather
// than NotFound.
func (r *PGRepository) FindProcessByNumber(ctx context.Context, processNumber string) (research.ProcessRecord, error) {
	const query = `
		SELECT p.id, p.request_id, p.process_number, p.data_found
		FROM process_records p
		JOIN research_requests rr ON rr.id = p.request_id
		WHERE p.process_number = $1
		ORDER BY rr.created_at DESC
		LIMIT 1
	`

	var rec research.ProcessRecord
	err := r.pool.QueryRow(ctx, query, processNumber).
		Scan(&rec.ID, &rec.RequestID, &rec.ProcessNumber, &rec.DataFound)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return research.ProcessRecord{}, research.ErrProcessNotFound
		}
		return research.ProcessRecord{}, fmt.Errorf("delivery: find process by number: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) ProgressByProcess(ctx context.Context, processID string) ([]research.ProgressEntry, error) {
	const query = `
		SELECT id, process_id, occurred_at, description
		FROM progress_entries
		WHERE process_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := r.pool.Query(ctx, query, processID)
	if err != nil {
		return nil, fmt.Errorf("delivery: list progress: %w", err)
	}
	defer rows.Close()

	entries := make([]research.ProgressEntry, 0, 8)
	for rows.Next() {
		var e research.ProgressEntry
		if err := rows.Scan(&e.ID, &e.ProcessID, &e.OccurredAt, &e.Description); err != nil {
			return nil, fmt.Errorf("delivery: scan progress: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delivery: iterate progress: %w", err)
	}
	return entries, nil
}
