package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/internal/version"
)

const (
	// DefaultBatchSize is the buffer size that triggers an immediate flush.
	DefaultBatchSize = 20

	// DefaultFlushInterval is the periodic flush cadence.
	DefaultFlushInterval = 60 * time.Second

	deliveryTimeout = 10 * time.Second
)

// Recorder is the interface the invocation wrapper reports outcomes to.
// Both Tracker and DemoTracker satisfy it.
type Recorder interface {
	// TrackToolCall records one completed invocation. It never blocks and
	// never returns an error to the caller.
	TrackToolCall(tool string, duration time.Duration, success bool, errMsg string)

	// Flush attempts one delivery of the buffered events.
	Flush(ctx context.Context) error

	// Shutdown stops background work and performs one final best-effort flush.
	Shutdown(ctx context.Context)
}

// Config configures a Tracker.
type Config struct {
	Endpoint      string
	APIKey        string
	Server        ServerInfo
	BatchSize     int
	FlushInterval time.Duration

	// Debug enables logging of delivery failures. Without it delivery
	// failures are absorbed silently; events are re-queued either way.
	Debug bool

	// Metrics, when set, mirrors every tracked call into local Prometheus
	// collectors.
	Metrics *Metrics

	// Spool, when set, persists undelivered events at shutdown and re-queues
	// previously spooled events at construction.
	Spool *Spool

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Logger scopes tracker log output. Defaults to the global logger.
	Logger *zerolog.Logger
}

// Tracker buffers invocation events in memory and flushes them to the remote
// collector when the buffer reaches BatchSize, every FlushInterval, and at
// shutdown. It is safe for concurrent use.
type Tracker struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger

	mu        sync.Mutex
	buffer    []Event
	inFlight  bool
	flushDone *sync.Cond

	tracked   uint64
	delivered uint64
	failed    uint64

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewTracker creates a tracker and starts its flush timer. Exactly one timer
// goroutine runs per tracker; Shutdown stops it.
func NewTracker(cfg Config) *Tracker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: deliveryTimeout}
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "metering").Logger()

	t := &Tracker{
		cfg:    cfg,
		client: client,
		logger: logger,
		buffer: make([]Event, 0, cfg.BatchSize),
		ticker: time.NewTicker(cfg.FlushInterval),
		done:   make(chan struct{}),
	}
	t.flushDone = sync.NewCond(&t.mu)

	if cfg.Spool != nil {
		if spooled, err := cfg.Spool.LoadEvents(); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to load spooled metric events")
		} else if len(spooled) > 0 {
			t.buffer = append(t.buffer, spooled...)
			t.logger.Info().Int("count", len(spooled)).Msg("Re-queued spooled metric events")
		}
	}

	t.wg.Add(1)
	go t.run()

	return t
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ticker.C:
			t.flushLogged(context.Background())
		case <-t.done:
			return
		}
	}
}

// TrackToolCall appends one event to the buffer. When the buffer reaches
// BatchSize an asynchronous flush attempt is triggered; the caller is never
// blocked and never sees a delivery failure.
func (t *Tracker) TrackToolCall(tool string, duration time.Duration, success bool, errMsg string) {
	ev := newEvent(tool, duration, success, errMsg)

	if t.cfg.Metrics != nil {
		t.cfg.Metrics.Observe(tool, duration, success)
	}

	t.mu.Lock()
	t.buffer = append(t.buffer, ev)
	t.tracked++
	shouldFlush := len(t.buffer) >= t.cfg.BatchSize
	t.mu.Unlock()

	if shouldFlush {
		go t.flushLogged(context.Background())
	}
}

// Flush takes a snapshot of the buffer, swaps in a fresh one and performs a
// single delivery attempt. On failure the snapshot is re-prepended ahead of
// anything that accumulated during the attempt, preserving temporal order.
// Only one flush is in flight at a time; a concurrent call is a no-op.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	if t.inFlight || len(t.buffer) == 0 {
		t.mu.Unlock()
		return nil
	}
	t.inFlight = true
	snapshot := t.buffer
	t.buffer = make([]Event, 0, t.cfg.BatchSize)
	t.mu.Unlock()

	err := t.deliver(ctx, snapshot)

	t.mu.Lock()
	if err != nil {
		t.buffer = append(snapshot, t.buffer...)
		t.failed++
	} else {
		t.delivered += uint64(len(snapshot))
	}
	t.inFlight = false
	t.flushDone.Broadcast()
	t.mu.Unlock()

	return err
}

func (t *Tracker) flushLogged(ctx context.Context) {
	if err := t.Flush(ctx); err != nil && t.cfg.Debug {
		t.logger.Warn().Err(err).Msg("Metric flush failed, events re-queued")
	}
}

func (t *Tracker) deliver(ctx context.Context, events []Event) error {
	batch := Batch{
		BatchID:  uuid.NewString(),
		Events:   events,
		Server:   t.cfg.Server,
		Metadata: environmentMetadata(),
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("X-Tollgate-SDK-Version", version.Version)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	return nil
}

// Stats reports lifetime tracker counters.
func (t *Tracker) Stats() (tracked, delivered, failed uint64, buffered int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracked, t.delivered, t.failed, len(t.buffer)
}

// Shutdown stops the flush timer and performs one final best-effort flush.
// When a spool is configured, events that still could not be delivered are
// persisted for the next run.
func (t *Tracker) Shutdown(ctx context.Context) {
	t.ticker.Stop()
	close(t.done)
	t.wg.Wait()

	// A size-triggered flush may still be in flight; wait for its outcome
	// first, otherwise a failure would re-prepend its snapshot after the
	// final flush and spool snapshot have already run, losing those events.
	t.waitForFlush()
	t.flushLogged(ctx)

	if t.cfg.Spool == nil {
		return
	}

	t.mu.Lock()
	for t.inFlight {
		t.flushDone.Wait()
	}
	remaining := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	if len(remaining) == 0 {
		return
	}
	if err := t.cfg.Spool.SaveEvents(remaining); err != nil {
		t.logger.Warn().Err(err).Int("count", len(remaining)).Msg("Failed to spool undelivered metric events")
		return
	}
	t.logger.Info().Int("count", len(remaining)).Msg("Spooled undelivered metric events")
}

func (t *Tracker) waitForFlush() {
	t.mu.Lock()
	for t.inFlight {
		t.flushDone.Wait()
	}
	t.mu.Unlock()
}
