package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/output"
	"github.com/mchale/favicon-harvester/internal/progress"
)

// RunnerConfig controls Runner behavior.
type RunnerConfig struct {
	// Topic is the completion notification topic; empty disables publishing.
	Topic string
	// BlobPrefix namespaces stored result files.
	BlobPrefix string
}

// Runner consumes queued batches and executes the resolution pipeline:
// orchestrate, persist, render the result file, and notify.
type Runner struct {
	queue    Queue
	store    Store
	archiver ResultArchiver
	blobs    BlobStore
	pub      Publisher
	orch     *Orchestrator
	emitter  progress.Emitter
	clock    favicon.Clock
	cfg      RunnerConfig
	logger   *zap.Logger
}

// NewRunner constructs a Runner. archiver, blobs, pub, and emitter are
// optional; a nil value disables that stage.
func NewRunner(
	queue Queue,
	store Store,
	archiver ResultArchiver,
	blobs BlobStore,
	pub Publisher,
	orch *Orchestrator,
	emitter progress.Emitter,
	clock favicon.Clock,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:    queue,
		store:    store,
		archiver: archiver,
		blobs:    blobs,
		pub:      pub,
		orch:     orch,
		emitter:  emitter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queued batches until the context finishes.
func (r *Runner) Run(ctx context.Context) {
	for {
		item, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		r.logger.Debug("dequeued batch", zap.String("batch_id", item.BatchID))
		r.processBatch(ctx, item)
	}
}

func (r *Runner) processBatch(ctx context.Context, item Item) {
	if err := r.store.UpdateBatchStatus(ctx, item.BatchID, StatusRunning, "", Counters{}); err != nil {
		r.logger.Error("update batch status failed", zap.String("batch_id", item.BatchID), zap.Error(err))
		return
	}

	r.storeInput(ctx, item)

	batchUUID, _ := uuid.Parse(item.BatchID)
	total := len(item.Records)
	r.emit(progress.Event{
		BatchID: batchUUID,
		TS:      r.clock.Now(),
		Stage:   progress.StageBatchStart,
		Total:   total,
	})

	results := r.orch.ProcessAll(ctx, item.Records, func(processed, total int, pct string, last favicon.Result) {
		r.emit(progress.Event{
			BatchID:    batchUUID,
			TS:         r.clock.Now(),
			Stage:      progress.StageItemDone,
			Processed:  processed,
			Total:      total,
			Percentage: pct,
			LastResult: last,
		})
	})

	counters := countStatuses(results)
	errText := r.persist(ctx, item.BatchID, results)

	status := StatusSucceeded
	if errText != "" {
		status = StatusFailed
	}
	if err := r.store.UpdateBatchStatus(ctx, item.BatchID, status, errText, counters); err != nil {
		r.logger.Error("final batch status update failed", zap.String("batch_id", item.BatchID), zap.Error(err))
	}

	r.emit(progress.Event{
		BatchID:    batchUUID,
		TS:         r.clock.Now(),
		Stage:      progress.StageBatchDone,
		Processed:  total,
		Total:      total,
		Percentage: progress.FormatPercentage(total, total),
	})

	r.notify(ctx, item.BatchID, status, counters)
}

// storeInput keeps a copy of the submitted domain list alongside the batch,
// best-effort.
func (r *Runner) storeInput(ctx context.Context, item Item) {
	if r.blobs == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString("rank,domain\n")
	for _, rec := range item.Records {
		fmt.Fprintf(&sb, "%d,%s\n", rec.Rank, rec.Domain)
	}
	uri, err := r.blobs.PutObject(ctx, r.inputPath(item.BatchID), "text/csv", []byte(sb.String()))
	if err != nil {
		r.logger.Warn("store input list failed", zap.String("batch_id", item.BatchID), zap.Error(err))
		return
	}
	if err := r.store.SetBatchURIs(ctx, item.BatchID, uri, ""); err != nil {
		r.logger.Warn("record input uri failed", zap.String("batch_id", item.BatchID), zap.Error(err))
	}
}

// persist stores results in the batch store, archives them, and renders the
// downloadable result file. Only a batch-store failure fails the batch;
// archive and blob stages are best-effort.
func (r *Runner) persist(ctx context.Context, batchID string, results []favicon.Result) string {
	if err := r.store.StoreResults(ctx, batchID, results); err != nil {
		r.logger.Error("store results failed", zap.String("batch_id", batchID), zap.Error(err))
		return fmt.Sprintf("store results: %v", err)
	}

	if r.archiver != nil {
		if err := r.archiver.ArchiveResults(ctx, batchID, r.clock.Now(), results); err != nil {
			r.logger.Warn("archive results failed", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	if r.blobs != nil {
		data, err := output.EncodeCSV(results)
		if err != nil {
			r.logger.Warn("encode result file failed", zap.String("batch_id", batchID), zap.Error(err))
			return ""
		}
		uri, err := r.blobs.PutObject(ctx, r.resultPath(batchID), "text/csv", data)
		if err != nil {
			r.logger.Warn("store result file failed", zap.String("batch_id", batchID), zap.Error(err))
			return ""
		}
		if err := r.store.SetBatchURIs(ctx, batchID, "", uri); err != nil {
			r.logger.Warn("record result uri failed", zap.String("batch_id", batchID), zap.Error(err))
		}
	}
	return ""
}

func (r *Runner) notify(ctx context.Context, batchID string, status Status, counters Counters) {
	if r.pub == nil || r.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"batch_id":  batchID,
		"status":    string(status),
		"found":     counters.Found,
		"not_found": counters.NotFound,
		"errors":    counters.Errors,
		"timestamp": r.clock.Now().Format(time.RFC3339),
	}
	if _, err := r.pub.Publish(ctx, r.cfg.Topic, payload); err != nil {
		r.logger.Warn("publish completion failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (r *Runner) resultPath(batchID string) string {
	return r.blobPath(batchID, "results.csv")
}

func (r *Runner) inputPath(batchID string) string {
	return r.blobPath(batchID, "input.csv")
}

func (r *Runner) blobPath(batchID, name string) string {
	prefix := strings.Trim(r.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s", batchID, name)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, batchID, name)
}

func (r *Runner) emit(evt progress.Event) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

func countStatuses(results []favicon.Result) Counters {
	var c Counters
	for _, res := range results {
		switch res.Status {
		case favicon.StatusFound:
			c.Found++
		case favicon.StatusNotFound:
			c.NotFound++
		case favicon.StatusError:
			c.Errors++
		}
	}
	return c
}
