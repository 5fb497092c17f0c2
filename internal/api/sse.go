package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/progress"
)

const subscriberBuffer = 64

// EventBroker fans progress events out to per-batch SSE subscribers. It
// implements progress.Sink so the hub can feed it alongside other sinks.
// Slow subscribers lose events rather than stalling the hub.
type EventBroker struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[chan progress.Event]struct{}
	closed bool
}

// NewEventBroker constructs an EventBroker.
func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[uuid.UUID]map[chan progress.Event]struct{})}
}

// Subscribe registers for events of one batch. The returned cancel func
// must be called when the subscriber is done.
func (b *EventBroker) Subscribe(batchID uuid.UUID) (<-chan progress.Event, func()) {
	ch := make(chan progress.Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := b.subs[batchID]
	if !ok {
		set = make(map[chan progress.Event]struct{})
		b.subs[batchID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[batchID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(b.subs, batchID)
				}
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Consume delivers a flushed event batch to matching subscribers.
func (b *EventBroker) Consume(_ context.Context, events []progress.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, evt := range events {
		for ch := range b.subs[evt.BatchID] {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	return nil
}

// Close drops all subscribers.
func (b *EventBroker) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, id)
	}
	return nil
}

// streamBatchEvents handles GET /v1/batches/{batch_id}/events as an SSE
// stream. The stream ends after BATCH_DONE or when the client disconnects.
func (s *Server) streamBatchEvents(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	batchID, err := uuid.Parse(chi.URLParam(r, "batch_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := s.broker.Subscribe(batchID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Error("marshal progress event failed", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Stage, payload); err != nil {
				return
			}
			flusher.Flush()
			if evt.Stage == progress.StageBatchDone {
				return
			}
		}
	}
}
