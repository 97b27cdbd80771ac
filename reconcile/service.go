package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service runs the reconciliation batch.
type Service struct {
	pool TxBeginner
	repo Repository
	log  *zap.Logger
}

// NewService creates a reconciliation batch service.
func NewService(pool TxBeginner, repo Repository, log *zap.Logger) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pool: pool, repo: repo, log: log}
}

// group is the result rows for one (request, process) pair, in file order.
type group struct {
	requestID     string
	processNumber string
	rows          []ResultRow
}

// ImportResults applies a result table to the store and returns the
// number of records written. The whole import runs in one transaction:
// an unexpected failure rolls back everything, while unknown processes
// and malformed delimited entries are logged and skipped. Idempotence
// comes from natural-key existence checks only, so importing the same
// table twice writes nothing the second time.
func (s *Service) ImportResults(ctx context.Context, rows []ResultRow) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := 0
	for _, requestID := range requestOrder(rows) {
		n, err := s.importRequest(ctx, tx, requestID, groupsForRequest(rows, requestID))
		if err != nil {
			return 0, err
		}
		applied += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("reconcile: commit: %w", err)
	}

	s.log.Info("reconciliation import applied", zap.Int("records", applied))
	return applied, nil
}

func (s *Service) importRequest(ctx context.Context, tx pgx.Tx, requestID string, groups []group) (int, error) {
	exists, err := s.repo.RequestExists(ctx, tx, requestID)
	if err != nil {
		return 0, err
	}
	if !exists {
		s.log.Warn("skipping results for unknown request", zap.String("request_id", requestID))
		return 0, nil
	}

	applied := 0
	for _, g := range groups {
		n, err := s.importProcess(ctx, tx, g)
		if err != nil {
			if errors.Is(err, ErrUnknownProcess) {
				s.log.Warn("skipping results for unknown process",
					zap.String("request_id", g.requestID),
					zap.String("process_number", g.processNumber),
				)
				continue
			}
			return 0, err
		}
		applied += n
	}

	if err := s.repo.CompleteRequest(ctx, tx, requestID); err != nil {
		return 0, err
	}

	return applied, nil
}

func (s *Service) importProcess(ctx context.Context, tx pgx.Tx, g group) (int, error) {
	processID, err := s.repo.FindProcessID(ctx, tx, g.requestID, g.processNumber)
	if err != nil {
		return 0, err
	}

	applied := 0
	first := g.rows[0]

	// Cover sheet: created once, only when the first row carries a case value.
	if first.CaseValue != nil {
		hasCover, err := s.repo.HasCoverSheet(ctx, tx, processID)
		if err != nil {
			return 0, err
		}
		if !hasCover {
			if err := s.repo.InsertCoverSheet(ctx, tx, CoverSheetParams{
				ProcessID: processID,
				CaseValue: *first.CaseValue,
				ClassCode: first.ClassCode,
				LegalArea: first.LegalArea,
			}); err != nil {
				return 0, err
			}
			applied++
		}
	}

	if first.DocumentKey != "" {
		hasDoc, err := s.repo.HasDocument(ctx, tx, processID, first.DocumentKey)
		if err != nil {
			return 0, err
		}
		if !hasDoc {
			if err := s.repo.InsertDocument(ctx, tx, processID, first.DocumentKey); err != nil {
				return 0, err
			}
			applied++
		}
	}

	parties, malformed := ParseParticipants(first.Parties)
	s.logMalformed(g, "parties", malformed)
	for _, p := range parties {
		hasParty, err := s.repo.HasParty(ctx, tx, processID, p.Role, p.Name)
		if err != nil {
			return 0, err
		}
		if !hasParty {
			if err := s.repo.InsertParty(ctx, tx, processID, p.Role, p.Name); err != nil {
				return 0, err
			}
			applied++
		}
	}

	attorneys, malformed := ParseAttorneys(first.Attorneys)
	s.logMalformed(g, "attorneys", malformed)
	for _, a := range attorneys {
		// The (role, name) pair is the key; an existing attorney keeps
		// its bar registration as-is.
		hasAttorney, err := s.repo.HasAttorney(ctx, tx, processID, a.Role, a.Name)
		if err != nil {
			return 0, err
		}
		if !hasAttorney {
			if err := s.repo.InsertAttorney(ctx, tx, processID, a.Role, a.Name, a.BarRegistration); err != nil {
				return 0, err
			}
			applied++
		}
	}

	// Progress entries come from every row of the group.
	for _, row := range g.rows {
		if row.ProgressAt == nil {
			continue
		}
		hasProgress, err := s.repo.HasProgress(ctx, tx, processID, *row.ProgressAt, row.ProgressDescription)
		if err != nil {
			return 0, err
		}
		if hasProgress {
			continue
		}
		if err := s.repo.InsertProgress(ctx, tx, processID, *row.ProgressAt, row.ProgressDescription); err != nil {
			return 0, err
		}
		applied++
	}

	if err := s.repo.MarkDataFound(ctx, tx, processID); err != nil {
		return 0, err
	}

	return applied, nil
}

func (s *Service) logMalformed(g group, field string, errs []error) {
	for _, err := range errs {
		s.log.Warn("skipping malformed entry",
			zap.String("request_id", g.requestID),
			zap.String("process_number", g.processNumber),
			zap.String("field", field),
			zap.Error(err),
		)
	}
}

// requestOrder returns the distinct request ids in file order.
func requestOrder(rows []ResultRow) []string {
	seen := make(map[string]struct{}, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.RequestID]; ok {
			continue
		}
		seen[row.RequestID] = struct{}{}
		order = append(order, row.RequestID)
	}
	return order
}

// groupsForRequest splits one request's rows into per-process groups,
// preserving file order.
func groupsForRequest(rows []ResultRow, requestID string) []group {
	index := make(map[string]int)
	groups := make([]group, 0, 4)
	for _, row := range rows {
		if row.RequestID != requestID {
			continue
		}
		i, ok := index[row.ProcessNumber]
		if !ok {
			i = len(groups)
			index[row.ProcessNumber] = i
			groups = append(groups, group{
				requestID:     requestID,
				processNumber: row.ProcessNumber,
			})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups
}
