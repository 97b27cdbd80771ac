// Package dispatch selects pending research requests, marks them
// in-flight, and emits the flat work list handed to the external
// fulfillment actor.
package dispatch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"caseflow/research"
)

// WorkItem is one row of the exported work list.
type WorkItem struct {
	RequestID     string
	ProcessNumber string
	Instance      int
}

// Options controls the selection predicate.
type Options struct {
	// IncludeDispatched re-exports requests already marked DISPATCHED.
	// This is the operational recovery path for work lists the external
	// actor lost; normal runs leave it off so a request is exported at
	// most once.
	IncludeDispatched bool
}

// Service runs the dispatch batch.
type Service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewService creates a dispatch batch service.
func NewService(pool *pgxpool.Pool, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pool: pool, log: log}
}

// ExportPending flattens every eligible request into work items and
// flips the selected requests to DISPATCHED in the same transaction.
// Row locks with SKIP LOCKED keep two concurrent runs from exporting
// the same request. An empty selection returns an empty list.
func (s *Service) ExportPending(ctx context.Context, opts Options) ([]WorkItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	selectSQL := `
		SELECT id, instance
		FROM research_requests
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
	`
	args := []any{research.StatusPending}
	if opts.IncludeDispatched {
		selectSQL = `
			SELECT id, instance
			FROM research_requests
			WHERE status = $1 OR status = $2
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
		`
		args = append(args, research.StatusDispatched)
	}

	rows, err := tx.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("dispatch: select eligible: %w", err)
	}

	type selected struct {
		id       string
		instance int
	}
	requests := make([]selected, 0, 16)
	for rows.Next() {
		var sel selected
		if err := rows.Scan(&sel.id, &sel.instance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("dispatch: scan request: %w", err)
		}
		requests = append(requests, sel)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("dispatch: iterate requests: %w", err)
	}
	rows.Close()

	if len(requests) == 0 {
		return []WorkItem{}, nil
	}

	items := make([]WorkItem, 0, len(requests))
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.id)

		procRows, err := tx.Query(ctx, `
			SELECT process_number
			FROM process_records
			WHERE request_id = $1
			ORDER BY process_number ASC
		`, req.id)
		if err != nil {
			return nil, fmt.Errorf("dispatch: select processes: %w", err)
		}
		for procRows.Next() {
			var number string
			if err := procRows.Scan(&number); err != nil {
				procRows.Close()
				return nil, fmt.Errorf("dispatch: scan process: %w", err)
			}
			items = append(items, WorkItem{
				RequestID:     req.id,
				ProcessNumber: number,
				Instance:      req.instance,
			})
		}
		if err := procRows.Err(); err != nil {
			procRows.Close()
			return nil, fmt.Errorf("dispatch: iterate processes: %w", err)
		}
		procRows.Close()
	}

	if _, err := tx.Exec(ctx, `
		UPDATE research_requests
		SET status = $1
		WHERE id = ANY($2::uuid[])
	`, research.StatusDispatched, ids); err != nil {
		return nil, fmt.Errorf("dispatch: mark dispatched: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dispatch: commit: %w", err)
	}

	s.log.Info("dispatch batch exported",
		zap.Int("requests", len(ids)),
		zap.Int("work_items", len(items)),
		zap.Bool("include_dispatched", opts.IncludeDispatched),
	)

	return items, nil
}
