// Command jobs bundles the operational batch tasks that run outside the
// API: exporting the research work list, importing reconciled results,
// sweeping expired requests, and provisioning tenants.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caseflow/db"
	"caseflow/dispatch"
	"caseflow/objectstore"
	"caseflow/reconcile"
	"caseflow/retention"
	"caseflow/tenant"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	root := &cobra.Command{
		Use:           "jobs",
		Short:         "batch operations for the research request tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		dispatchCmd(log),
		reconcileCmd(log),
		sweepCmd(log),
		provisionTenantCmd(log),
	)

	if err := root.Execute(); err != nil {
		log.Error("job failed", zap.Error(err))
		os.Exit(1)
	}
}

func dispatchCmd(log *zap.Logger) *cobra.Command {
	var out string
	var redispatch bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "export pending requests to a work list and mark them dispatched",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := dispatch.NewService(pool, log)
			items, err := svc.ExportPending(ctx, dispatch.Options{IncludeDispatched: redispatch})
			if err != nil {
				return err
			}
			if err := dispatch.WriteWorkbook(items, out); err != nil {
				return err
			}
			log.Info("work list written",
				zap.String("path", out),
				zap.Int("items", len(items)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "work_list.xlsx", "path of the workbook to write")
	cmd.Flags().BoolVar(&redispatch, "redispatch", false, "also re-export requests already dispatched")
	return cmd
}

func reconcileCmd(log *zap.Logger) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "import a results workbook and complete the matching requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return fmt.Errorf("--in is required")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			rows, err := reconcile.ReadWorkbook(in)
			if err != nil {
				return err
			}
			svc := reconcile.NewService(pool, reconcile.NewRepository(), log)
			applied, err := svc.ImportResults(ctx, rows)
			if err != nil {
				return err
			}
			log.Info("results imported",
				zap.String("path", in),
				zap.Int("rows", len(rows)),
				zap.Int("applied", applied),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "path of the results workbook to import")
	return cmd
}

func sweepCmd(log *zap.Logger) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "purge requests older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := storeFromEnv()
			if err != nil {
				return err
			}
			svc := retention.NewService(pool, retention.NewRepository(pool), store, log)
			purged, err := svc.PurgeExpired(ctx, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			log.Info("sweep complete",
				zap.Int("days", days),
				zap.Int("purged", purged),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "retention window in days")
	return cmd
}

func provisionTenantCmd(log *zap.Logger) *cobra.Command {
	var name, secret string

	cmd := &cobra.Command{
		Use:   "provision-tenant",
		Short: "register a tenant and store its secret hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || secret == "" {
				return fmt.Errorf("--name and --secret are required")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := tenant.NewService(tenant.NewRepository(pool), os.Getenv("APP_SECRET_KEY"))
			t, err := svc.Provision(ctx, name, secret)
			if err != nil {
				return err
			}
			log.Info("tenant provisioned",
				zap.String("tenant_id", t.ID),
				zap.String("name", t.Name),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tenant name")
	cmd.Flags().StringVar(&secret, "secret", "", "shared secret for the tenant")
	return cmd
}

// storeFromEnv builds the object store client used by the sweeper so
// external documents are removed alongside their rows. The sweep runs
// without a store when none is configured.
func storeFromEnv() (objectstore.Store, error) {
	endpoint := os.Getenv("OBJECT_STORE_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}
	useSSL, _ := strconv.ParseBool(os.Getenv("OBJECT_STORE_USE_SSL"))
	store, err := objectstore.NewMinIOStore(objectstore.Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
		Bucket:    os.Getenv("OBJECT_STORE_BUCKET"),
		UseSSL:    useSSL,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
