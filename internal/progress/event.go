// Package progress defines the event stream emitted while a batch resolves.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageBatchStart Stage = "BATCH_START"
	StageItemDone   Stage = "ITEM_DONE"
	StageBatchDone  Stage = "BATCH_DONE"
)

// Event is pushed once per completed domain (and once at batch start and
// end). Events are ephemeral: emission order reflects completion order, not
// rank order, and nothing is persisted.
type Event struct {
	// BatchID identifies the batch run the event belongs to.
	BatchID uuid.UUID `json:"batch_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which milestone occurred.
	Stage Stage `json:"stage"`
	// Processed counts completed resolutions so far.
	Processed int `json:"processed"`
	// Total is the fixed input size of the batch.
	Total int `json:"total"`
	// Percentage is Processed/Total*100 pre-formatted to one decimal.
	Percentage string `json:"percentage"`
	// LastResult carries the resolution that triggered an ITEM_DONE event.
	LastResult favicon.Result `json:"last_result"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.BatchID == uuid.Nil {
		return errors.New("batch id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageBatchStart, StageBatchDone:
	case StageItemDone:
		if e.LastResult.Domain == "" {
			return errors.New("item done requires a result")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Total <= 0 {
		return errors.New("total must be > 0")
	}
	if e.Processed < 0 || e.Processed > e.Total {
		return errors.New("processed out of range")
	}
	return nil
}

// FormatPercentage renders processed/total*100 to one decimal place.
func FormatPercentage(processed, total int) string {
	if total <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", float64(processed)/float64(total)*100)
}
