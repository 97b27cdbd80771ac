package test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"caseflow/delivery"
	"caseflow/dispatch"
	"caseflow/objectstore"
	"caseflow/reconcile"
	"caseflow/research"
	"caseflow/retention"
	"caseflow/tenant"
	"caseflow/test/infra"
)

// TestRequestLifecycle walks one request through the whole pipeline
// against a real PostgreSQL: provision and authenticate a tenant, submit
// a request, export the work list, import results, read the delivery
// endpoints, and finally sweep the request out after its retention
// window.
func TestRequestLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if os.Getenv("CASEFLOW_TEST_PG_DSN") == "" && !dockerAvailable(ctx) {
		t.Skip("no docker and no CASEFLOW_TEST_PG_DSN; skipping lifecycle test")
	}

	pgC, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer teardown(context.Background())
	defer pool.Close()

	store := objectstore.NewFake()

	tenants := tenant.NewService(tenant.NewRepository(pool), "lifecycle-secret")
	researchSvc := research.NewService(pool, research.NewRepository(pool))
	dispatcher := dispatch.NewService(pool, nil)
	importer := reconcile.NewService(pool, reconcile.NewRepository(), nil)
	gateway := delivery.NewService(delivery.NewRepository(pool), store, nil)
	sweeper := retention.NewService(pool, retention.NewRepository(pool), store, nil)

	// Provision and authenticate.
	acme, err := tenants.Provision(ctx, "acme-legal", "s3cret-stable")
	if err != nil {
		t.Fatalf("provision tenant: %v", err)
	}
	token, err := tenants.Authenticate(ctx, "acme-legal", "s3cret-stable")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	verifiedID, err := tenants.VerifyClaim(token)
	if err != nil {
		t.Fatalf("verify claim: %v", err)
	}
	if verifiedID != acme.ID {
		t.Fatalf("claim tenant = %s, want %s", verifiedID, acme.ID)
	}
	if _, err := tenants.Authenticate(ctx, "acme-legal", "wrong"); err == nil {
		t.Fatal("authenticate with wrong secret succeeded")
	}

	// Submit a request with two processes.
	const (
		numberA = "0000001-11.2024.8.26.0100"
		numberB = "0000002-22.2024.8.26.0100"
	)
	req, err := researchSvc.Create(ctx, research.CreateParams{
		TenantID:       acme.ID,
		Instance:       1,
		ProcessNumbers: []string{numberA, numberB, numberA},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if got := requestStatus(ctx, t, pool, req.ID); got != string(research.StatusPending) {
		t.Fatalf("status after create = %s, want PENDING", got)
	}

	// A read before dispatch signals processing, not data.
	cover, err := gateway.FetchCoverData(ctx, req.ID, acme.ID)
	if err != nil {
		t.Fatalf("premature cover read: %v", err)
	}
	if !cover.Processing {
		t.Fatal("cover read before completion should report processing")
	}

	// Dispatch exports both processes and flips the request.
	items, err := dispatcher.ExportPending(ctx, dispatch.Options{})
	if err != nil {
		t.Fatalf("export pending: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("exported %d work items, want 2", len(items))
	}
	for _, item := range items {
		if item.RequestID != req.ID || item.Instance != 1 {
			t.Fatalf("unexpected work item %+v", item)
		}
	}
	if got := requestStatus(ctx, t, pool, req.ID); got != string(research.StatusDispatched) {
		t.Fatalf("status after dispatch = %s, want DISPATCHED", got)
	}

	// A second run without --redispatch finds nothing.
	again, err := dispatcher.ExportPending(ctx, dispatch.Options{})
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second export returned %d items, want 0", len(again))
	}

	// Recovery run re-exports the dispatched request.
	recovered, err := dispatcher.ExportPending(ctx, dispatch.Options{IncludeDispatched: true})
	if err != nil {
		t.Fatalf("recovery export: %v", err)
	}
	if len(recovered) != 2 {
		t.Fatalf("recovery export returned %d items, want 2", len(recovered))
	}

	// Import the result table for both processes.
	caseValue := 15000.50
	when := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	later := when.Add(48 * time.Hour)
	rows := []reconcile.ResultRow{
		{
			RequestID:           req.ID,
			ProcessNumber:       numberA,
			CaseValue:           &caseValue,
			ClassCode:           "7",
			LegalArea:           "Civil",
			DocumentKey:         "docs/" + req.ID + "/petition-a.pdf",
			Parties:             "AUTOR:Ana Souza|REU:Banco Azul",
			Attorneys:           "AUTOR:Carlos Lima (SP123456)|REU:Beatriz Rocha (RJ654321)",
			ProgressAt:          &when,
			ProgressDescription: "Distribuido por sorteio",
		},
		{
			RequestID:           req.ID,
			ProcessNumber:       numberA,
			ProgressAt:          &later,
			ProgressDescription: "Conclusos para despacho",
		},
		{
			RequestID:           req.ID,
			ProcessNumber:       numberB,
			ProgressAt:          &when,
			ProgressDescription: "Juntada de peticao",
		},
	}
	applied, err := importer.ImportResults(ctx, rows)
	if err != nil {
		t.Fatalf("import results: %v", err)
	}
	if applied == 0 {
		t.Fatal("import applied no records")
	}
	if got := requestStatus(ctx, t, pool, req.ID); got != string(research.StatusCompleted) {
		t.Fatalf("status after import = %s, want COMPLETED", got)
	}

	// Re-running the same table applies nothing.
	reapplied, err := importer.ImportResults(ctx, rows)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if reapplied != 0 {
		t.Fatalf("second import applied %d records, want 0", reapplied)
	}

	// Another tenant cannot read the request.
	intruder, err := tenants.Provision(ctx, "rival-legal", "rival-secret")
	if err != nil {
		t.Fatalf("provision second tenant: %v", err)
	}
	if _, err := gateway.FetchCoverData(ctx, req.ID, intruder.ID); err != delivery.ErrForbidden {
		t.Fatalf("cross-tenant read error = %v, want ErrForbidden", err)
	}
	if got := requestStatus(ctx, t, pool, req.ID); got != string(research.StatusCompleted) {
		t.Fatal("forbidden read must not stamp delivery")
	}

	// First legitimate read stamps DELIVERED and returns the cover data.
	cover, err = gateway.FetchCoverData(ctx, req.ID, acme.ID)
	if err != nil {
		t.Fatalf("cover read: %v", err)
	}
	if cover.Processing {
		t.Fatal("completed request still reports processing")
	}
	if len(cover.Processes) != 2 {
		t.Fatalf("cover returned %d processes, want 2", len(cover.Processes))
	}
	if got := requestStatus(ctx, t, pool, req.ID); got != string(research.StatusDelivered) {
		t.Fatalf("status after read = %s, want DELIVERED", got)
	}
	firstDelivered := deliveredAt(ctx, t, pool, req.ID)

	var withCover *delivery.CoverData
	for i := range cover.Processes {
		if cover.Processes[i].ProcessNumber == numberA {
			withCover = &cover.Processes[i]
		}
	}
	if withCover == nil {
		t.Fatalf("process %s missing from cover data", numberA)
	}
	if withCover.CaseValue == nil || *withCover.CaseValue != caseValue {
		t.Fatalf("case value = %v, want %v", withCover.CaseValue, caseValue)
	}
	if len(withCover.Parties) != 2 || len(withCover.Attorneys) != 2 {
		t.Fatalf("parties/attorneys = %d/%d, want 2/2",
			len(withCover.Parties), len(withCover.Attorneys))
	}

	// Documents come back with freshly signed URLs.
	docs, err := gateway.FetchDocuments(ctx, req.ID, acme.ID)
	if err != nil {
		t.Fatalf("documents read: %v", err)
	}
	if len(docs.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs.Documents))
	}
	doc := docs.Documents[0]
	if doc.URL == nil || !strings.HasPrefix(*doc.URL, "https://signed.example/") {
		t.Fatalf("document URL = %v, want signed", doc.URL)
	}

	// A later read does not move the delivery timestamp.
	if _, err := gateway.FetchCoverData(ctx, req.ID, acme.ID); err != nil {
		t.Fatalf("repeat cover read: %v", err)
	}
	if got := deliveredAt(ctx, t, pool, req.ID); !got.Equal(firstDelivered) {
		t.Fatalf("delivered_at moved from %v to %v", firstDelivered, got)
	}

	// Progress lookup by process number.
	progress, err := gateway.FetchProgress(ctx, numberA, acme.ID)
	if err != nil {
		t.Fatalf("progress read: %v", err)
	}
	if len(progress.Entries) != 2 {
		t.Fatalf("progress entries = %d, want 2", len(progress.Entries))
	}

	// Sweep: backdate the delivered request past the window and purge.
	if _, err := pool.Exec(ctx, `
		UPDATE research_requests
		SET delivered_at = now() - interval '8 days'
		WHERE id = $1
	`, req.ID); err != nil {
		t.Fatalf("backdate delivered_at: %v", err)
	}

	fresh, err := researchSvc.Create(ctx, research.CreateParams{
		TenantID:       acme.ID,
		ProcessNumbers: []string{"0000003-33.2024.8.26.0100"},
	})
	if err != nil {
		t.Fatalf("create fresh request: %v", err)
	}

	purged, err := sweeper.PurgeExpired(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d requests, want 1", purged)
	}
	if n := countRows(ctx, t, pool, "research_requests", req.ID); n != 0 {
		t.Fatal("purged request still present")
	}
	if got := requestStatus(ctx, t, pool, fresh.ID); got != string(research.StatusPending) {
		t.Fatal("fresh request touched by sweep")
	}
	if len(store.Deletes) != 1 || store.Deletes[0] != "docs/"+req.ID+"/petition-a.pdf" {
		t.Fatalf("object deletes = %v, want the stored document key", store.Deletes)
	}
}

// TestConcurrentDispatchDisjoint runs two dispatch batches at once and
// verifies no request is exported by both.
func TestConcurrentDispatchDisjoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if os.Getenv("CASEFLOW_TEST_PG_DSN") == "" && !dockerAvailable(ctx) {
		t.Skip("no docker and no CASEFLOW_TEST_PG_DSN; skipping dispatch test")
	}

	pgC, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer teardown(context.Background())
	defer pool.Close()

	tenants := tenant.NewService(tenant.NewRepository(pool), "dispatch-secret")
	researchSvc := research.NewService(pool, research.NewRepository(pool))

	owner, err := tenants.Provision(ctx, "bulk-legal", "bulk-secret")
	if err != nil {
		t.Fatalf("provision tenant: %v", err)
	}
	for i := 0; i < 20; i++ {
		number := fmt.Sprintf("%07d-11.2024.8.26.0100", i+1)
		if _, err := researchSvc.Create(ctx, research.CreateParams{
			TenantID:       owner.ID,
			ProcessNumbers: []string{number},
		}); err != nil {
			t.Fatalf("create request %d: %v", i, err)
		}
	}

	dispatcher := dispatch.NewService(pool, nil)
	batches := make([][]dispatch.WorkItem, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i := range batches {
		i := i
		g.Go(func() error {
			items, err := dispatcher.ExportPending(gctx, dispatch.Options{})
			if err != nil {
				return err
			}
			batches[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent export: %v", err)
	}

	seen := make(map[string]int)
	total := 0
	for _, batch := range batches {
		for _, item := range batch {
			seen[item.RequestID]++
			total++
		}
	}
	if total != 20 {
		t.Fatalf("exported %d items across both batches, want 20", total)
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("request %s exported %d times", id, n)
		}
	}
}

func requestStatus(ctx context.Context, t *testing.T, pool *pgxpool.Pool, id string) string {
	t.Helper()
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM research_requests WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("query status of %s: %v", id, err)
	}
	return status
}

func deliveredAt(ctx context.Context, t *testing.T, pool *pgxpool.Pool, id string) time.Time {
	t.Helper()
	var ts time.Time
	if err := pool.QueryRow(ctx, `SELECT delivered_at FROM research_requests WHERE id = $1`, id).Scan(&ts); err != nil {
		t.Fatalf("query delivered_at of %s: %v", id, err)
	}
	return ts
}

func countRows(ctx context.Context, t *testing.T, pool *pgxpool.Pool, table, requestID string) int {
	t.Helper()
	var n int
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE id = $1`, table)
	if err := pool.QueryRow(ctx, query, requestID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func dockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "info")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
