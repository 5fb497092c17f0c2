// Package memory provides in-memory persistence for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mchale/favicon-harvester/internal/batch"
	"github.com/mchale/favicon-harvester/internal/favicon"
)

// BatchStore implements batch.Store with mutex-guarded maps.
type BatchStore struct {
	mu      sync.RWMutex
	batches map[string]batch.Batch
	results map[string][]favicon.Result
}

// NewBatchStore constructs a BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{
		batches: make(map[string]batch.Batch),
		results: make(map[string][]favicon.Result),
	}
}

// CreateBatch stores a new batch in queued status.
func (s *BatchStore) CreateBatch(_ context.Context, b batch.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return errors.New("batch already exists")
	}
	s.batches[b.ID] = b
	return nil
}

// UpdateBatchStatus updates the status and counters for a batch.
func (s *BatchStore) UpdateBatchStatus(
	_ context.Context,
	batchID string,
	status batch.Status,
	errText string,
	counters batch.Counters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return batch.ErrNotFound
	}
	b.Status = status
	b.ErrorText = errText
	b.Counters = counters
	now := time.Now().UTC()
	if status == batch.StatusRunning && b.Started == nil {
		b.Started = pointerTime(now)
	}
	if status == batch.StatusSucceeded || status == batch.StatusFailed {
		b.Finished = pointerTime(now)
	}
	s.batches[batchID] = b
	return nil
}

// SetBatchURIs records the stored input/result file locations. Empty
// arguments leave the existing value untouched.
func (s *BatchStore) SetBatchURIs(_ context.Context, batchID, inputURI, resultURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return batch.ErrNotFound
	}
	if inputURI != "" {
		b.InputURI = inputURI
	}
	if resultURI != "" {
		b.ResultURI = resultURI
	}
	s.batches[batchID] = b
	return nil
}

// StoreResults replaces the result set for a batch.
func (s *BatchStore) StoreResults(_ context.Context, batchID string, results []favicon.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batchID]; !ok {
		return batch.ErrNotFound
	}
	s.results[batchID] = append([]favicon.Result(nil), results...)
	return nil
}

// GetBatch fetches a batch by ID.
func (s *BatchStore) GetBatch(_ context.Context, batchID string) (batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchID]
	if !ok {
		return batch.Batch{}, batch.ErrNotFound
	}
	return b, nil
}

// ListResults returns the stored result set for a batch.
func (s *BatchStore) ListResults(_ context.Context, batchID string) ([]favicon.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.batches[batchID]; !ok {
		return nil, batch.ErrNotFound
	}
	results := s.results[batchID]
	out := make([]favicon.Result, len(results))
	copy(out, results)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
