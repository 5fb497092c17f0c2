package sinks

import (
	"context"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/mchale/favicon-harvester/internal/progress"
)

// BarSink renders a terminal progress bar for a single batch run. It is the
// CLI counterpart of the SSE stream the server exposes.
type BarSink struct {
	container *mpb.Progress
	bar       *mpb.Bar
}

// NewBarSink creates a bar sized to the batch total.
func NewBarSink(total int) *BarSink {
	container := mpb.New(mpb.WithWidth(64))
	bar := container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("resolving "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	return &BarSink{container: container, bar: bar}
}

// Consume advances the bar once per completed item.
func (s *BarSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		if evt.Stage == progress.StageItemDone {
			s.bar.Increment()
		}
	}
	return nil
}

// Close waits for the bar to render its final state.
func (s *BarSink) Close(context.Context) error {
	s.bar.Abort(false)
	s.container.Wait()
	return nil
}
