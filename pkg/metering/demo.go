package metering

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DemoTracker is the no-transport Recorder for local development. It buffers
// and flushes like Tracker, with delivery replaced by a logged summary: no
// network call, no failure path and no re-queueing. A full buffer flushes
// immediately, so long-running demo servers never accumulate events without
// bound.
type DemoTracker struct {
	logger    zerolog.Logger
	batchSize int

	mu     sync.Mutex
	buffer []Event
}

// NewDemoTracker creates a log-only recorder.
func NewDemoTracker(logger *zerolog.Logger) *DemoTracker {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &DemoTracker{
		logger:    l.With().Str("component", "metering").Bool("demo", true).Logger(),
		batchSize: DefaultBatchSize,
	}
}

// TrackToolCall appends one event to the buffer, flushing when it reaches
// batch size.
func (d *DemoTracker) TrackToolCall(tool string, duration time.Duration, success bool, errMsg string) {
	ev := newEvent(tool, duration, success, errMsg)
	d.mu.Lock()
	d.buffer = append(d.buffer, ev)
	full := len(d.buffer) >= d.batchSize
	d.mu.Unlock()

	if full {
		_ = d.Flush(context.Background())
	}
}

// Flush logs a summary of the buffered events and clears the buffer. It
// cannot fail.
func (d *DemoTracker) Flush(ctx context.Context) error {
	d.mu.Lock()
	events := d.buffer
	d.buffer = nil
	d.mu.Unlock()

	if len(events) == 0 {
		return nil
	}

	succeeded := 0
	for _, ev := range events {
		if ev.Success {
			succeeded++
		}
	}

	d.logger.Info().
		Int("events", len(events)).
		Int("succeeded", succeeded).
		Int("failed", len(events)-succeeded).
		Msg("Demo mode: metric batch discarded locally")

	return nil
}

// Shutdown performs a final flush. There is no timer to stop.
func (d *DemoTracker) Shutdown(ctx context.Context) {
	_ = d.Flush(ctx)
}
