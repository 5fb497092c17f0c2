package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mchale/favicon-harvester/internal/progress"
)

// PrometheusSink exports batch progress via Prometheus. It owns the
// batch-level collectors; per-resolution counters live with the resolver.
type PrometheusSink struct {
	batchesStarted   prometheus.Counter
	batchesCompleted prometheus.Counter
	batchesRunning   prometheus.Gauge
	itemsCompleted   *prometheus.CounterVec

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "favicon_batches_started_total",
			Help: "Total batches that have started processing.",
		}),
		batchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "favicon_batches_completed_total",
			Help: "Total batches that have finished processing.",
		}),
		batchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "favicon_batches_running",
			Help: "Batches currently in flight.",
		}),
		itemsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "favicon_batch_items_completed_total",
			Help: "Per-domain completions observed on the progress stream, by status.",
		}, []string{"status"}),
		running: make(map[uuid.UUID]struct{}),
	}
	for _, collector := range []prometheus.Collector{
		s.batchesStarted,
		s.batchesCompleted,
		s.batchesRunning,
		s.itemsCompleted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the event batch. Safe for concurrent
// use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageBatchStart:
			s.batchesStarted.Inc()
			if s.track(evt.BatchID, true) {
				s.batchesRunning.Inc()
			}
		case progress.StageBatchDone:
			s.batchesCompleted.Inc()
			if s.track(evt.BatchID, false) {
				s.batchesRunning.Dec()
			}
		case progress.StageItemDone:
			s.itemsCompleted.WithLabelValues(string(evt.LastResult.Status)).Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

// track records batch lifecycle transitions and reports whether the gauge
// should move (start/done events may be replayed by multiple emitters).
func (s *PrometheusSink) track(id uuid.UUID, start bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.running[id]
	if start {
		if exists {
			return false
		}
		s.running[id] = struct{}{}
		return true
	}
	if !exists {
		return false
	}
	delete(s.running, id)
	return true
}
