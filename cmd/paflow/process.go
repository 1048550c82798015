package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/api"
	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/config"
	"github.com/payerops/paflow/internal/home"
	"github.com/payerops/paflow/internal/server"
)

var (
	processCaseID    string
	processReasoning bool
)

var processCmd = &cobra.Command{
	Use:   "process <file> [file...]",
	Short: "Process one prior authorization case from local files",
	Long: `Process a prior authorization case end to end from local PDF or
page-image files, without a running server.

Results are persisted to the case store and printed when the run
finishes. If no external database is configured, the managed Postgres
container is started and left running.

Examples:
  paflow process referral.pdf
  paflow process --case-id pa-001 form.pdf labs.png
  paflow process --reasoning referral.pdf   # use the reasoning model tier`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getConfigManager(h)
		if err != nil {
			return err
		}

		appCfg := mgr.Get()
		if processReasoning {
			cfgCopy := *appCfg
			cfgCopy.Pipeline.UseReasoning = true
			appCfg = &cfgCopy
		}

		store, err := openCaseStore(ctx, appCfg, h, true)
		if err != nil {
			return err
		}
		defer store.Close()

		proc, err := server.BuildPipeline(appCfg, store, logger)
		if err != nil {
			return err
		}

		record, err := proc.Run(ctx, args, processCaseID)
		if err != nil {
			return err
		}

		return api.Output(record)
	},
}

func init() {
	processCmd.Flags().StringVar(&processCaseID, "case-id", "", "Case ID (generated when empty)")
	processCmd.Flags().BoolVar(&processReasoning, "reasoning", false, "Use the reasoning model for the determination")

	rootCmd.AddCommand(processCmd)
}

// openCaseStore connects to the configured database. When no external DSN is
// set it uses the managed container, optionally starting it first.
func openCaseStore(ctx context.Context, appCfg *config.Config, h *home.Dir, ensureStarted bool) (casestore.Store, error) {
	dsn := appCfg.PostgresDSN()
	if dsn == "" {
		mgr, err := casestore.NewDockerManager(appCfg.ToDockerConfig(h.PostgresDataPath()))
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres manager: %w", err)
		}
		defer mgr.Close()

		if ensureStarted {
			if err := mgr.Start(ctx); err != nil {
				return nil, fmt.Errorf("failed to start postgres: %w", err)
			}
			if err := mgr.WaitReady(ctx, 60*time.Second); err != nil {
				return nil, fmt.Errorf("postgres not ready: %w", err)
			}
		}
		dsn = mgr.DSN()
	}

	store, err := casestore.NewPostgresStore(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open case store: %w", err)
	}
	return store, nil
}
