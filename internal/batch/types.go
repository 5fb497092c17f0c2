// Package batch drives favicon resolution for whole domain lists under a
// global concurrency bound.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

// ErrNotFound is returned by Store implementations for unknown batch IDs.
var ErrNotFound = errors.New("batch not found")

// Status represents the lifecycle state of a submitted batch.
type Status string

// Batch status values persisted in the batch store.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Counters tracks per-status result totals for a batch. The three counts
// always sum to the batch's input size once the batch finishes.
type Counters struct {
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Errors   int `json:"errors"`
}

// Batch is the metadata persisted for each submitted domain list.
type Batch struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Total     int        `json:"total"`
	Submitted time.Time  `json:"submitted_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
	ErrorText string     `json:"error_text,omitempty"`
	Counters  Counters   `json:"counters"`
	// InputURI and ResultURI point at the stored input list and the
	// rendered result file, when blob storage is configured.
	InputURI  string `json:"input_uri,omitempty"`
	ResultURI string `json:"result_uri,omitempty"`
}

// Item wraps a batch ready to run.
type Item struct {
	BatchID   string
	Records   []favicon.DomainRecord
	Submitted int64
}

// Store persists batch metadata and per-domain results.
type Store interface {
	CreateBatch(ctx context.Context, b Batch) error
	UpdateBatchStatus(ctx context.Context, batchID string, status Status, errText string, counters Counters) error
	SetBatchURIs(ctx context.Context, batchID, inputURI, resultURI string) error
	StoreResults(ctx context.Context, batchID string, results []favicon.Result) error
	GetBatch(ctx context.Context, batchID string) (Batch, error)
	ListResults(ctx context.Context, batchID string) ([]favicon.Result, error)
}

// ResultArchiver persists finished results to durable history storage
// (Postgres in production). It is optional and best-effort.
type ResultArchiver interface {
	ArchiveResults(ctx context.Context, batchID string, finished time.Time, results []favicon.Result) error
}

// BlobStore writes raw artifacts (input lists, result files) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes batch completion notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for batch runs.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (Item, error)
}

// DomainResolver is the per-domain discovery engine the orchestrator fans
// out over. An empty URL with a nil error is a definitive "no favicon".
type DomainResolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

// IDGenerator produces batch IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
