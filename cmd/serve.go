package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/api"
	"github.com/mchale/favicon-harvester/internal/batch"
	"github.com/mchale/favicon-harvester/internal/clock/system"
	"github.com/mchale/favicon-harvester/internal/config"
	"github.com/mchale/favicon-harvester/internal/id/uuid"
	"github.com/mchale/favicon-harvester/internal/logging"
	"github.com/mchale/favicon-harvester/internal/progress"
	"github.com/mchale/favicon-harvester/internal/progress/sinks"
	pubsubPublisher "github.com/mchale/favicon-harvester/internal/publisher/pubsub"
	queueMemory "github.com/mchale/favicon-harvester/internal/queue/memory"
	"github.com/mchale/favicon-harvester/internal/storage/gcs"
	"github.com/mchale/favicon-harvester/internal/storage/local"
	storageMemory "github.com/mchale/favicon-harvester/internal/storage/memory"
	"github.com/mchale/favicon-harvester/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the batch resolution HTTP service",
		Long: `Starts the HTTP API for submitting domain batches, together with the
queue runners that resolve them, the progress event stream, and the
configured result stores.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	resolver, cleanup, err := buildResolver(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store := storageMemory.NewBatchStore()
	queue := queueMemory.NewQueue(cfg.Batch.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	var archiver batch.ResultArchiver
	if cfg.DB.DSN != "" {
		resultStore, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{
			DSN:   cfg.DB.DSN,
			Table: cfg.DB.Table,
		})
		if err != nil {
			return fmt.Errorf("init result archive: %w", err)
		}
		defer resultStore.Close()
		archiver = resultStore
	}

	var pub batch.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		p, err := pubsubPublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		}()
		pub = p
	}

	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("register progress metrics: %w", err)
	}
	broker := api.NewEventBroker()
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		broker,
	)

	orch := batch.NewOrchestrator(resolver, cfg.Batch.WindowSize, logger.Named("orchestrator"))
	runnerCfg := batch.RunnerConfig{
		Topic:      cfg.PubSub.TopicName,
		BlobPrefix: cfg.Storage.Prefix,
	}
	runners := make([]*batch.Runner, 0, cfg.Batch.Runners)
	for i := 0; i < cfg.Batch.Runners; i++ {
		runners = append(runners, batch.NewRunner(
			queue,
			store,
			archiver,
			blobs,
			pub,
			orch,
			hub,
			clock,
			runnerCfg,
			logger.Named("runner").With(zap.Int("index", i)),
		))
	}
	dispatch := batch.NewDispatcher(queue, runners)

	apiServer := api.NewServer(store, dispatch, idGen, clock, broker, reg, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("runners", cfg.Batch.Runners))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (batch.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return blobs, nil
	case "memory":
		return storageMemory.NewBlobStore(), nil
	default:
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return blobs, nil
	}
}
