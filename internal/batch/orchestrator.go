package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/progress"
)

// ProgressFunc is invoked after every completed resolution, in completion
// order. Calls are serialized; implementations need no locking of their own.
type ProgressFunc func(processed, total int, percentage string, last favicon.Result)

// Orchestrator drives many resolver invocations over a fixed input set
// under a global concurrency ceiling.
//
// The input is partitioned into fixed-size windows of the ceiling; each
// window is dispatched fully in parallel and the orchestrator waits for the
// whole window before starting the next. One slow domain therefore stalls
// its window, a simplicity/throughput trade-off; a continuously refilled
// pool would improve aggregate latency without changing per-domain
// semantics.
type Orchestrator struct {
	resolver   DomainResolver
	windowSize int
	logger     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. windowSize is the global
// in-flight ceiling (default 100).
func NewOrchestrator(resolver DomainResolver, windowSize int, logger *zap.Logger) *Orchestrator {
	if windowSize <= 0 {
		windowSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		resolver:   resolver,
		windowSize: windowSize,
		logger:     logger,
	}
}

// ProcessAll resolves every record exactly once and returns one result per
// input, sorted ascending by rank (stable for duplicate ranks). It never
// returns an error: per-record faults become results with StatusError, and
// onProgress (optional) observes each completion as it happens.
func (o *Orchestrator) ProcessAll(
	ctx context.Context,
	records []favicon.DomainRecord,
	onProgress ProgressFunc,
) []favicon.Result {
	results := make([]favicon.Result, len(records))
	total := len(records)
	processed := 0
	var mu sync.Mutex

	for start := 0; start < len(records); start += o.windowSize {
		end := start + o.windowSize
		if end > len(records) {
			end = len(records)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				res := o.resolveOne(ctx, records[idx])
				mu.Lock()
				results[idx] = res
				processed++
				done := processed
				if onProgress != nil {
					onProgress(done, total, progress.FormatPercentage(done, total), res)
				}
				mu.Unlock()
			}(i)
		}
		wg.Wait()
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})
	return results
}

// resolveOne contains one record's resolution, converting any escaping
// fault (error or panic) into a StatusError result so a single bad domain
// can never reject its window.
func (o *Orchestrator) resolveOne(ctx context.Context, rec favicon.DomainRecord) (res favicon.Result) {
	res = favicon.Result{Rank: rec.Rank, Domain: rec.Domain}
	defer func() {
		if r := recover(); r != nil {
			res.Status = favicon.StatusError
			res.FaviconURL = ""
			res.ErrorMessage = fmt.Sprintf("panic: %v", r)
			o.logger.Error("resolution panicked",
				zap.String("domain", res.Domain),
				zap.Any("panic", r),
			)
		}
	}()

	url, err := o.resolver.Resolve(ctx, rec.Domain)
	switch {
	case err != nil:
		res.Status = favicon.StatusError
		res.ErrorMessage = err.Error()
	case url == "":
		res.Status = favicon.StatusNotFound
	default:
		res.Status = favicon.StatusFound
		res.FaviconURL = url
	}
	return res
}
