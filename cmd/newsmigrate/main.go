package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contentforge/newsmigrate/internal/assets"
	"github.com/contentforge/newsmigrate/internal/compose"
	"github.com/contentforge/newsmigrate/internal/config"
	"github.com/contentforge/newsmigrate/internal/folder"
	"github.com/contentforge/newsmigrate/internal/history"
	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
	"github.com/contentforge/newsmigrate/internal/orchestrator"
	"github.com/contentforge/newsmigrate/internal/report"
	"github.com/contentforge/newsmigrate/internal/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "newsmigrate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsmigrate",
		Short: "Migrate scraped news records into the destination CMS",
		Long: `newsmigrate reads a JSON file of scraped news records and migrates each one
into the destination CMS: it resolves a folder per record, uploads the record's
images, composes a structured-content payload and creates the entry. Connection
and tuning settings come from environment variables (LIFERAY_*, BATCH_*).`,
		SilenceUsage: true,
	}
	cmd.AddCommand(newRunCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		inputPath  string
		limit      int
		reportPath string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a migration over an input file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if limit > 0 {
				cfg.Processing.LimitItems = limit
			}
			if reportPath != "" {
				cfg.Report.Path = reportPath
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			return runMigration(cmd.Context(), cfg, inputPath, logger)
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the scraped records JSON file")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most N records (overrides LIMIT_ITEMS)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Report output path (overrides REPORT_PATH)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runMigration(ctx context.Context, cfg *config.Config, inputPath string, logger *slog.Logger) error {
	records, err := source.Load(inputPath, cfg.Processing.LimitItems, logger)
	if err != nil {
		return err
	}

	client := liferay.NewClient(liferay.Options{
		BaseURL:    cfg.Liferay.BaseURL,
		SiteID:     cfg.Liferay.SiteID,
		Username:   cfg.Liferay.Username,
		Password:   cfg.Liferay.Password,
		Timeout:    cfg.Liferay.Timeout,
		MaxRetries: cfg.Processing.MaxRetries,
	})

	stats := orchestrator.NewStats()
	docResolver := folder.NewResolver(client.DocumentFolders(), cfg.Liferay.DocumentParentFolderID, logger, stats.FolderCreated)
	contentResolver := folder.NewResolver(client.ContentFolders(), cfg.Liferay.ContentParentFolderID, logger, stats.FolderCreated)
	uploader := assets.NewUploader(client, cfg.Liferay.Timeout, logger, stats.AssetUploaded)
	composer := compose.NewComposer(cfg.Liferay.ContentStructureID)

	o := orchestrator.New(orchestrator.Options{
		BatchSize:                cfg.Processing.BatchSize,
		BatchDelay:               cfg.Processing.BatchDelay,
		MaxConcurrency:           cfg.Processing.MaxConcurrency,
		FallbackDocumentFolderID: cfg.Liferay.DocumentParentFolderID,
	}, docResolver, contentResolver, uploader, composer, client, stats, logger)

	runStats, results, runErr := o.Run(ctx, records)
	if runErr != nil {
		logger.Warn("run interrupted", "error", runErr)
	}

	rep := report.Report{InputPath: inputPath, Statistics: runStats, Results: results}

	// Persistence of the outcome is best-effort: a report or history failure
	// must not mask the migration outcome itself.
	persistCtx := context.Background()
	if cfg.History.DSN != "" {
		if runID, err := saveHistory(persistCtx, cfg.History.DSN, inputPath, runStats, results); err != nil {
			logger.Error("saving run history failed", "error", err)
		} else {
			rep.RunID = runID
			logger.Info("run history saved", "runId", runID)
		}
	}
	if err := report.WriteLocal(cfg.Report.Path, rep); err != nil {
		logger.Error("writing report failed", "path", cfg.Report.Path, "error", err)
	} else {
		logger.Info("report written", "path", cfg.Report.Path)
	}
	if cfg.Report.S3Endpoint != "" {
		if key, err := archiveReport(persistCtx, cfg.Report, rep); err != nil {
			logger.Error("archiving report failed", "error", err)
		} else {
			logger.Info("report archived", "bucket", cfg.Report.S3Bucket, "key", key)
		}
	}

	printSummary(runStats)
	return runErr
}

func saveHistory(ctx context.Context, dsn, inputPath string, stats model.RunStatistics, results []model.MigrationResult) (string, error) {
	pool, err := history.Connect(ctx, dsn)
	if err != nil {
		return "", err
	}
	defer pool.Close()
	if err := history.EnsureSchema(ctx, pool); err != nil {
		return "", err
	}
	return history.NewStore(pool).SaveRun(ctx, inputPath, stats, results)
}

func archiveReport(ctx context.Context, cfg config.Report, rep report.Report) (string, error) {
	archiver, err := report.NewArchiver(cfg)
	if err != nil {
		return "", err
	}
	if err := archiver.EnsureBucket(ctx); err != nil {
		return "", err
	}
	return archiver.Archive(ctx, rep)
}

func printSummary(s model.RunStatistics) {
	fmt.Printf("\nMigration finished in %s\n", s.Duration().Round(time.Millisecond))
	fmt.Printf("  items:     %d total, %d processed\n", s.TotalItems, s.ProcessedItems)
	fmt.Printf("  succeeded: %d (%.1f%%)\n", s.SucceededItems, s.SuccessRate())
	fmt.Printf("  failed:    %d\n", s.FailedItems)
	fmt.Printf("  created:   %d folders, %d assets, %d contents\n",
		s.FoldersCreated, s.AssetsUploaded, s.ContentsCreated)
}
