package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/progress"
	publisherMemory "github.com/mchale/favicon-harvester/internal/publisher/memory"
)

type fakeStore struct {
	mu       sync.Mutex
	statuses []Status
	errText  string
	counters Counters
	results map[string][]favicon.Result
	inputs  map[string]string
	uris    map[string]string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results: make(map[string][]favicon.Result),
		inputs:  make(map[string]string),
		uris:    make(map[string]string),
	}
}

func (s *fakeStore) CreateBatch(context.Context, Batch) error { return nil }

func (s *fakeStore) UpdateBatchStatus(_ context.Context, _ string, status Status, errText string, counters Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.errText = errText
	s.counters = counters
	return nil
}

func (s *fakeStore) SetBatchURIs(_ context.Context, batchID, inputURI, resultURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inputURI != "" {
		s.inputs[batchID] = inputURI
	}
	if resultURI != "" {
		s.uris[batchID] = resultURI
	}
	return nil
}

func (s *fakeStore) StoreResults(_ context.Context, batchID string, results []favicon.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("disk full")
	}
	s.results[batchID] = results
	return nil
}

func (s *fakeStore) GetBatch(context.Context, string) (Batch, error) {
	return Batch{}, ErrNotFound
}

func (s *fakeStore) ListResults(_ context.Context, batchID string) ([]favicon.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[batchID], nil
}

type fakeArchiver struct {
	mu      sync.Mutex
	batches []string
	err     error
}

func (a *fakeArchiver) ArchiveResults(_ context.Context, batchID string, _ time.Time, _ []favicon.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches = append(a.batches, batchID)
	return a.err
}

type fakeBlobs struct {
	mu    sync.Mutex
	paths []string
	data  [][]byte
}

func (b *fakeBlobs) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	b.data = append(b.data, data)
	return "memory://" + path, nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *captureEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *captureEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	stages := make([]progress.Stage, len(e.events))
	for i, evt := range e.events {
		stages[i] = evt.Stage
	}
	return stages
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

type oneShotQueue struct {
	items chan Item
}

func (q *oneShotQueue) Enqueue(_ context.Context, item Item) error {
	q.items <- item
	return nil
}

func (q *oneShotQueue) Dequeue(ctx context.Context) (Item, error) {
	select {
	case <-ctx.Done():
		return Item{}, ctx.Err()
	case item := <-q.items:
		return item, nil
	}
}

const testBatchID = "0198c5a0-0000-7000-8000-0000000000aa"

func runOneBatch(t *testing.T, runner *Runner, queue *oneShotQueue, item Item, store *fakeStore) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	require.NoError(t, queue.Enqueue(ctx, item))
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		for _, st := range store.statuses {
			if st == StatusSucceeded || st == StatusFailed {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunnerProcessesBatchEndToEnd(t *testing.T) {
	t.Parallel()

	resolver := newScriptedResolver()
	resolver.urls["one.example"] = "https://one.example/favicon.ico"
	resolver.errs["three.example"] = errors.New("boom")
	orch := NewOrchestrator(resolver, 10, nil)

	store := newFakeStore()
	archiver := &fakeArchiver{}
	blobs := &fakeBlobs{}
	pub := publisherMemory.New()
	emitter := &captureEmitter{}
	queue := &oneShotQueue{items: make(chan Item, 1)}
	clock := stubClock{now: time.Unix(1000, 0).UTC()}

	runner := NewRunner(queue, store, archiver, blobs, pub, orch, emitter, clock,
		RunnerConfig{Topic: "done-topic", BlobPrefix: "batches"}, nil)

	item := Item{
		BatchID: testBatchID,
		Records: []favicon.DomainRecord{
			{Rank: 1, Domain: "one.example"},
			{Rank: 2, Domain: "two.example"},
			{Rank: 3, Domain: "three.example"},
		},
	}
	runOneBatch(t, runner, queue, item, store)

	require.Equal(t, []Status{StatusRunning, StatusSucceeded}, store.statuses)
	require.Equal(t, Counters{Found: 1, NotFound: 1, Errors: 1}, store.counters)
	require.Len(t, store.results[testBatchID], 3)

	require.Equal(t, []string{testBatchID}, archiver.batches)

	require.Equal(t, []string{
		"batches/" + testBatchID + "/input.csv",
		"batches/" + testBatchID + "/results.csv",
	}, blobs.paths)
	require.Contains(t, string(blobs.data[0]), "1,one.example")
	require.Contains(t, string(blobs.data[1]), "one.example")
	require.Equal(t, "memory://batches/"+testBatchID+"/input.csv", store.inputs[testBatchID])
	require.Equal(t, "memory://batches/"+testBatchID+"/results.csv", store.uris[testBatchID])

	messages := pub.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "done-topic", messages[0].Topic)
	payload, ok := messages[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, testBatchID, payload["batch_id"])
	require.Equal(t, "succeeded", payload["status"])
	require.Equal(t, 1, payload["found"])

	stages := emitter.stages()
	require.Equal(t, progress.StageBatchStart, stages[0])
	require.Equal(t, progress.StageBatchDone, stages[len(stages)-1])
	require.Len(t, stages, 5)
}

func TestRunnerStoreFailureFailsBatch(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(newScriptedResolver(), 10, nil)
	store := newFakeStore()
	store.failPut = true
	queue := &oneShotQueue{items: make(chan Item, 1)}
	runner := NewRunner(queue, store, nil, nil, nil, orch, nil, stubClock{now: time.Unix(0, 0)}, RunnerConfig{}, nil)

	item := Item{BatchID: testBatchID, Records: []favicon.DomainRecord{{Rank: 1, Domain: "x.example"}}}
	runOneBatch(t, runner, queue, item, store)

	require.Equal(t, []Status{StatusRunning, StatusFailed}, store.statuses)
	require.Contains(t, store.errText, "store results")
}

func TestRunnerArchiveFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(newScriptedResolver(), 10, nil)
	store := newFakeStore()
	archiver := &fakeArchiver{err: errors.New("postgres away")}
	queue := &oneShotQueue{items: make(chan Item, 1)}
	runner := NewRunner(queue, store, archiver, nil, nil, orch, nil, stubClock{now: time.Unix(0, 0)}, RunnerConfig{}, nil)

	item := Item{BatchID: testBatchID, Records: []favicon.DomainRecord{{Rank: 1, Domain: "x.example"}}}
	runOneBatch(t, runner, queue, item, store)

	require.Equal(t, []Status{StatusRunning, StatusSucceeded}, store.statuses)
}

func TestRunnerOptionalStagesDisabled(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(newScriptedResolver(), 10, nil)
	store := newFakeStore()
	queue := &oneShotQueue{items: make(chan Item, 1)}
	runner := NewRunner(queue, store, nil, nil, nil, orch, nil, stubClock{now: time.Unix(0, 0)}, RunnerConfig{}, nil)

	item := Item{BatchID: testBatchID, Records: []favicon.DomainRecord{{Rank: 1, Domain: "x.example"}}}
	runOneBatch(t, runner, queue, item, store)

	require.Equal(t, []Status{StatusRunning, StatusSucceeded}, store.statuses)
	require.Empty(t, store.uris)
}

func TestDispatcherEnqueueProxies(t *testing.T) {
	t.Parallel()

	queue := &oneShotQueue{items: make(chan Item, 1)}
	d := NewDispatcher(queue, nil)

	item := Item{BatchID: "b1"}
	require.NoError(t, d.Enqueue(context.Background(), item))
	got, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "b1", got.BatchID)
}
