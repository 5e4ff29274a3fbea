package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/carecoord/internal/carerecord"
	"github.com/hackgods/carecoord/internal/config"
	"github.com/hackgods/carecoord/internal/db"
	"github.com/hackgods/carecoord/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate-assignments",
		Short: "Fold legacy primary/list assignment columns into the care-record ledger",
		RunE:  run,
	}
	rootCmd.Flags().Int("batch-size", 100, "Records read per page")
	rootCmd.Flags().Bool("dry-run", false, "Report what would change without writing")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "migrate-assignments")
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.DBMaxConns, cfg.StorageTimeout)
	cancelPg()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	svc := carerecord.NewService(carerecord.NewPgRepository(pool), logger.Named("carerecord"))

	start := time.Now()
	report, err := svc.MigrateLegacy(ctx, batchSize, dryRun)
	logger.Info("legacy assignment migration finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("scanned", report.Scanned),
		zap.Int("migrated", report.Migrated),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)),
	)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d records failed to migrate", report.Failed)
	}
	return nil
}
