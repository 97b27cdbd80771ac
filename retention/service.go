package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"caseflow/objectstore"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service runs the retention sweep.
type Service struct {
	pool  TxBeginner
	repo  Repository
	store objectstore.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a retention sweeper.
func NewService(pool TxBeginner, repo Repository, store objectstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		pool:  pool,
		repo:  repo,
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PurgeExpired deletes every DELIVERED request older than the retention
// window, one transaction per request: a crash mid-sweep leaves purged
// requests gone for good and the rest untouched for the next run.
// External objects are deleted before their database rows, never the
// reverse; a failed object delete aborts that request's purge and the
// sweep moves on. Object deletes are idempotent, so a retry after a
// crash between the object delete and the row delete converges.
func (s *Service) PurgeExpired(ctx context.Context, window time.Duration) (int, error) {
	cutoff := s.now().Add(-window)

	ids, err := s.repo.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	purged := 0
	for _, id := range ids {
		if err := s.purgeRequest(ctx, id); err != nil {
			s.log.Error("purge failed, leaving request for next sweep",
				zap.String("request_id", id),
				zap.Error(err),
			)
			continue
		}
		purged++
	}

	s.log.Info("retention sweep finished",
		zap.Int("expired", len(ids)),
		zap.Int("purged", purged),
		zap.Time("cutoff", cutoff),
	)
	return purged, nil
}

func (s *Service) purgeRequest(ctx context.Context, requestID string) error {
	docs, err := s.repo.ListDocuments(ctx, requestID)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if doc.StorageRef == nil || s.store == nil || !s.store.Holds(*doc.StorageRef) {
			continue
		}
		key := s.store.KeyFor(*doc.StorageRef)
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("retention: delete object %s: %w", key, err)
		}
		s.log.Debug("external object deleted",
			zap.String("request_id", requestID),
			zap.String("key", key),
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("retention: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.DeleteRequestGraph(ctx, tx, requestID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("retention: commit purge: %w", err)
	}

	s.log.Info("request purged", zap.String("request_id", requestID))
	return nil
}
