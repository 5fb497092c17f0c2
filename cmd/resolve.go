package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/batch"
	"github.com/mchale/favicon-harvester/internal/config"
	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/input"
	"github.com/mchale/favicon-harvester/internal/logging"
	"github.com/mchale/favicon-harvester/internal/output"
	"github.com/mchale/favicon-harvester/internal/progress"
	"github.com/mchale/favicon-harvester/internal/progress/sinks"
)

func newResolveCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		window     int
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve favicons for a domain list and write CSV results",
		Long: `Reads a domain list (CSV "rank,domain" rows or one domain per line),
resolves each domain's favicon, and writes the results as CSV. Use "-"
for stdin/stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), inputPath, outputPath, window, noProgress)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "domain list file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "-", "result CSV file")
	cmd.Flags().IntVar(&window, "window", 0, "concurrency window size (0 uses config)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

func runResolve(parent context.Context, inputPath, outputPath string, window int, noProgress bool) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := readRecords(inputPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no domains in %s", inputPath)
	}

	resolver, cleanup, err := buildResolver(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if window <= 0 {
		window = cfg.Batch.WindowSize
	}
	orch := batch.NewOrchestrator(resolver, window, logger.Named("orchestrator"))

	var hub *progress.Hub
	var emit func(progress.Event)
	if noProgress {
		emit = func(progress.Event) {}
	} else {
		hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")}, sinks.NewBarSink(len(records)))
		emit = hub.Emit
	}

	batchID := uuid.New()
	emit(progress.Event{
		BatchID:    batchID,
		TS:         time.Now().UTC(),
		Stage:      progress.StageBatchStart,
		Total:      len(records),
		Percentage: "0.0",
	})
	results := orch.ProcessAll(ctx, records, func(processed, total int, percentage string, last favicon.Result) {
		emit(progress.Event{
			BatchID:    batchID,
			TS:         time.Now().UTC(),
			Stage:      progress.StageItemDone,
			Processed:  processed,
			Total:      total,
			Percentage: percentage,
			LastResult: last,
		})
	})
	emit(progress.Event{
		BatchID:    batchID,
		TS:         time.Now().UTC(),
		Stage:      progress.StageBatchDone,
		Processed:  len(results),
		Total:      len(records),
		Percentage: progress.FormatPercentage(len(results), len(records)),
	})
	if hub != nil {
		if err := hub.Close(context.Background()); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}

	return writeResults(outputPath, results)
}

func readRecords(path string) ([]favicon.DomainRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	records, err := input.ParseDomains(r)
	if err != nil {
		return nil, fmt.Errorf("parse domain list: %w", err)
	}
	return records, nil
}

func writeResults(path string, results []favicon.Result) error {
	if path == "-" {
		if err := output.WriteCSV(os.Stdout, results); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := output.WriteCSV(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
