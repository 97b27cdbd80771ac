package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"caseflow/objectstore"
	"caseflow/research"
)

// signedURLTTL is the fixed validity window of minted document URLs.
const signedURLTTL = 5 * time.Minute

// signConcurrency bounds the presign fan-out per read.
const signConcurrency = 4

// Service is the delivery gateway.
type Service struct {
	repo  Repository
	store objectstore.Store
	log   *zap.Logger
}

// NewService creates a delivery gateway. The store may be nil when no
// object service is configured; documents then carry raw references.
func NewService(repo Repository, store objectstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, store: store, log: log}
}

// FetchCoverData returns cover sheets, parties, and attorneys for every
// process of the request, stamping the first COMPLETED read as DELIVERED.
func (s *Service) FetchCoverData(ctx context.Context, requestID, tenantID string) (CoverResult, error) {
	req, err := s.gate(ctx, requestID, tenantID)
	if err != nil {
		return CoverResult{}, err
	}
	if !req.Status.Ready() {
		return CoverResult{Processing: true}, nil
	}
	if err := s.deliver(ctx, req); err != nil {
		return CoverResult{}, err
	}

	overviews, err := s.repo.ListProcessOverviews(ctx, requestID)
	if err != nil {
		return CoverResult{}, err
	}

	processes := make([]CoverData, 0, len(overviews))
	for _, o := range overviews {
		parties, err := s.repo.PartiesByProcess(ctx, o.ProcessID)
		if err != nil {
			return CoverResult{}, err
		}
		attorneys, err := s.repo.AttorneysByProcess(ctx, o.ProcessID)
		if err != nil {
			return CoverResult{}, err
		}

		data := CoverData{
			ProcessID:     o.ProcessID,
			ProcessNumber: o.ProcessNumber,
			Instance:      req.Instance,
			CaseValue:     o.CaseValue,
			DataFound:     o.DataFound,
			Parties:       make([]PartyData, 0, len(parties)),
			Attorneys:     make([]AttorneyData, 0, len(attorneys)),
		}
		if o.ClassCode != nil {
			data.ClassCode = *o.ClassCode
		}
		if o.LegalArea != nil {
			data.LegalArea = *o.LegalArea
		}
		for _, p := range parties {
			data.Parties = append(data.Parties, PartyData{Role: p.Role, Name: p.Name})
		}
		for _, a := range attorneys {
			data.Attorneys = append(data.Attorneys, AttorneyData{
				Role:            a.Role,
				Name:            a.Name,
				BarRegistration: a.BarRegistration,
			})
		}
		processes = append(processes, data)
	}

	return CoverResult{Processes: processes}, nil
}

// FetchDocuments returns the request's initial documents with stored
// references into the object store replaced by freshly signed 5-minute
// URLs. Signing failures degrade to the raw stored reference.
func (s *Service) FetchDocuments(ctx context.Context, requestID, tenantID string) (DocumentsResult, error) {
	req, err := s.gate(ctx, requestID, tenantID)
	if err != nil {
		return DocumentsResult{}, err
	}
	if !req.Status.Ready() {
		return DocumentsResult{Processing: true}, nil
	}
	if err := s.deliver(ctx, req); err != nil {
		return DocumentsResult{}, err
	}

	rows, err := s.repo.DocumentsByRequest(ctx, requestID)
	if err != nil {
		return DocumentsResult{}, err
	}

	docs := make([]DocumentData, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for i, row := range rows {
		docs[i] = DocumentData{
			DocumentID:      row.ID,
			RequestID:       requestID,
			ProcessID:       row.ProcessID,
			URL:             row.StorageRef,
			InitialPetition: row.InitialPetition,
			Found:           row.Found,
		}
		if row.StorageRef == nil || s.store == nil || !s.store.Holds(*row.StorageRef) {
			continue
		}
		i, ref := i, *row.StorageRef
		g.Go(func() error {
			signed, err := s.store.PresignGet(gctx, s.store.KeyFor(ref), signedURLTTL)
			if err != nil {
				s.log.Warn("document signing failed, returning stored reference",
					zap.String("request_id", requestID),
					zap.Error(err),
				)
				return nil
			}
			docs[i].URL = &signed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DocumentsResult{}, err
	}

	return DocumentsResult{Documents: docs}, nil
}

// FetchProgress returns the docket movements of one process, resolved by
// process number within the acting tenant's data.
func (s *Service) FetchProgress(ctx context.Context, processNumber, tenantID string) (ProgressResult, error) {
	rec, err := s.repo.FindProcessByNumber(ctx, processNumber)
	if err != nil {
		return ProgressResult{}, err
	}

	req, err := s.gate(ctx, rec.RequestID, tenantID)
	if err != nil {
		return ProgressResult{}, err
	}
	if !req.Status.Ready() {
		return ProgressResult{Processing: true}, nil
	}
	if err := s.deliver(ctx, req); err != nil {
		return ProgressResult{}, err
	}

	entries, err := s.repo.ProgressByProcess(ctx, rec.ID)
	if err != nil {
		return ProgressResult{}, err
	}

	out := make([]ProgressData, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProgressData{OccurredAt: e.OccurredAt, Description: e.Description})
	}
	return ProgressResult{Entries: out}, nil
}

// gate resolves the request and enforces tenant ownership.
func (s *Service) gate(ctx context.Context, requestID, tenantID string) (research.Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return research.Request{}, err
	}
	if req.TenantID != tenantID {
		return research.Request{}, ErrForbidden
	}
	return req, nil
}

// deliver stamps the first COMPLETED read as DELIVERED. The stamp is
// persisted before any data is returned; losing the race to a concurrent
// reader is fine, the winner's timestamp stands.
func (s *Service) deliver(ctx context.Context, req research.Request) error {
	if req.Status != research.StatusCompleted {
		return nil
	}
	stamped, err := s.repo.StampDelivered(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("delivery: mark delivered: %w", err)
	}
	if stamped {
		s.log.Info("request delivered", zap.String("request_id", req.ID))
	}
	return nil
}
