package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service handles request submission.
type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

// NewService creates a new research request service.
func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// WithIDGenerator overrides request id generation, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// Create submits a new research request with its process records in a
// single transaction. The request starts PENDING.
func (s *Service) Create(ctx context.Context, params CreateParams) (Request, error) {
	if params.TenantID == "" {
		return Request{}, fmt.Errorf("research: missing tenant id")
	}
	if params.Instance <= 0 {
		params.Instance = 1
	}

	numbers := make([]string, 0, len(params.ProcessNumbers))
	seen := make(map[string]struct{}, len(params.ProcessNumbers))
	for _, raw := range params.ProcessNumbers {
		n := strings.TrimSpace(raw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	if len(numbers) == 0 {
		return Request{}, fmt.Errorf("research: at least one process number is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("research: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req := Request{
		ID:       s.idGenerator(),
		TenantID: params.TenantID,
		Instance: params.Instance,
		Status:   StatusPending,
	}

	created, err := s.repo.CreateRequest(ctx, tx, req)
	if err != nil {
		return Request{}, err
	}

	for _, n := range numbers {
		if _, err := s.repo.AddProcess(ctx, tx, created.ID, n); err != nil {
			return Request{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Request{}, fmt.Errorf("research: commit: %w", err)
	}

	return created, nil
}
