// Package sinks contains progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/mchale/favicon-harvester/internal/progress"
)

// LogSink emits structured logs for progress streams. Useful during
// development or CLI runs where no durable subscriber exists.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("batch progress",
			zap.String("batch_id", evt.BatchID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("processed", evt.Processed),
			zap.Int("total", evt.Total),
			zap.String("percentage", evt.Percentage),
			zap.String("domain", evt.LastResult.Domain),
			zap.String("status", string(evt.LastResult.Status)),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
