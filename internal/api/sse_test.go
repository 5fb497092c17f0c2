package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/config"
	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/progress"
	queueMemory "github.com/mchale/favicon-harvester/internal/queue/memory"
	storageMemory "github.com/mchale/favicon-harvester/internal/storage/memory"
)

func TestEventBrokerFansOutPerBatch(t *testing.T) {
	t.Parallel()

	broker := NewEventBroker()
	batchA := uuid.New()
	batchB := uuid.New()

	chA, cancelA := broker.Subscribe(batchA)
	defer cancelA()
	chB, cancelB := broker.Subscribe(batchB)
	defer cancelB()

	err := broker.Consume(context.Background(), []progress.Event{
		{BatchID: batchA, Stage: progress.StageItemDone, Processed: 1, Total: 2},
	})
	require.NoError(t, err)

	select {
	case evt := <-chA:
		require.Equal(t, batchA, evt.BatchID)
	case <-time.After(time.Second):
		t.Fatal("expected event for batch A")
	}
	select {
	case <-chB:
		t.Fatal("batch B should not receive batch A events")
	default:
	}
}

func TestEventBrokerCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	broker := NewEventBroker()
	batchID := uuid.New()
	ch, cancel := broker.Subscribe(batchID)
	cancel()

	_, open := <-ch
	require.False(t, open)

	require.NoError(t, broker.Consume(context.Background(), []progress.Event{
		{BatchID: batchID, Stage: progress.StageItemDone},
	}))
}

func TestStreamBatchEventsEndsAtBatchDone(t *testing.T) {
	t.Parallel()

	broker := NewEventBroker()
	store := storageMemory.NewBatchStore()
	server := NewServer(
		store,
		queueMemory.NewQueue(1),
		&fakeIDGen{},
		&fakeClock{},
		broker,
		prometheus.NewRegistry(),
		config.Config{},
		zap.NewNop(),
	)

	batchID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/"+batchID.String()+"/events", nil)
	rec := httptest.NewRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Handler().ServeHTTP(rec, req)
	}()

	// Let the handler subscribe before publishing.
	require.Eventually(t, func() bool {
		broker.mu.RLock()
		defer broker.mu.RUnlock()
		return len(broker.subs[batchID]) == 1
	}, time.Second, 5*time.Millisecond)

	events := []progress.Event{
		{BatchID: batchID, TS: time.Now(), Stage: progress.StageItemDone, Processed: 1, Total: 1, Percentage: "100.0",
			LastResult: favicon.Result{Rank: 1, Domain: "example.com", Status: favicon.StatusFound}},
		{BatchID: batchID, TS: time.Now(), Stage: progress.StageBatchDone, Processed: 1, Total: 1, Percentage: "100.0"},
	}
	require.NoError(t, broker.Consume(context.Background(), events))

	wg.Wait()

	body := rec.Body.String()
	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	require.Contains(t, body, "event: ITEM_DONE")
	require.Contains(t, body, "event: BATCH_DONE")
	require.Contains(t, body, "example.com")
}

func TestStreamBatchEventsInvalidID(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/batches/not-a-uuid/events", nil)
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
