// Package toolwrap is the per-call orchestration point of the SDK. Wrap
// composes correlation-id logging, timeout enforcement, error normalization
// and usage metering around an arbitrary tool handler.
package toolwrap

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
	"github.com/tollgate/tollgate-go/pkg/metering"
)

// Handler is the business-logic function signature the SDK wraps.
type Handler func(ctx context.Context, input map[string]interface{}) (interface{}, error)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

const correlationIDLength = 8

// Options configures one wrapped tool.
type Options struct {
	// Name identifies the operation in logs, errors and metric events.
	// Required.
	Name string

	// Timeout bounds each invocation. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Metering disables outcome reporting when set to false. Defaults to
	// enabled.
	Metering *bool

	// Recorder receives outcome events when metering is enabled.
	Recorder metering.Recorder

	// Logger is the base logger; each call derives a scoped logger from it
	// carrying the correlation id. Defaults to the global logger.
	Logger *zerolog.Logger
}

func (o Options) meteringEnabled() bool {
	return o.Metering == nil || *o.Metering
}

type outcome struct {
	value interface{}
	err   error
}

// Wrap returns a handler that runs h with the full invocation lifecycle:
// correlation id assignment, redacted entry/exit logging, a timeout race and
// taxonomy normalization, reporting every completed call to the recorder.
//
// On timeout the handler goroutine is abandoned, not cancelled: it keeps
// running with the caller's original context and its eventual outcome is
// discarded. Integrators needing hard cancellation must honor ctx themselves.
func Wrap(h Handler, opts Options) Handler {
	if opts.Name == "" {
		panic("toolwrap: Options.Name is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	base := log.Logger
	if opts.Logger != nil {
		base = *opts.Logger
	}

	return func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
		correlationID := newCorrelationID()
		logger := base.With().
			Str("correlation_id", correlationID).
			Str("tool", opts.Name).
			Logger()

		start := time.Now()
		logger.Info().
			Interface("input", redactInput(input)).
			Msg("Tool invocation started")

		result := invoke(ctx, h, input, opts.Name, opts.Timeout)
		duration := time.Since(start)

		if result.err != nil {
			terr := mcperr.Normalize(result.err, opts.Name)
			logger.Error().
				Dur("duration", duration).
				Int("code", terr.Code).
				Err(result.err).
				Msg("Tool invocation failed")
			report(opts, terr.Message, duration, false)
			return nil, terr
		}

		logger.Info().
			Dur("duration", duration).
			Msg("Tool invocation completed")
		report(opts, "", duration, true)
		return result.value, nil
	}
}

// invoke races the handler against the timeout. Buffered channels let the
// abandoned goroutine finish after expiry without leaking.
func invoke(ctx context.Context, h Handler, input map[string]interface{}, name string, timeout time.Duration) outcome {
	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		value, err := h(ctx, input)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- value
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case value := <-resultChan:
		return outcome{value: value}
	case err := <-errChan:
		return outcome{err: err}
	case <-timer.C:
		return outcome{err: mcperr.NewTimeoutError(name, timeout)}
	}
}

func report(opts Options, errMsg string, duration time.Duration, success bool) {
	if !opts.meteringEnabled() || opts.Recorder == nil {
		return
	}
	opts.Recorder.TrackToolCall(opts.Name, duration, success, errMsg)
}

// newCorrelationID builds a per-call id unique enough to disambiguate
// concurrent invocations within a logging window: unix-ms prefix plus a
// short random suffix.
func newCorrelationID() string {
	suffix, err := gonanoid.New(correlationIDLength)
	if err != nil {
		// nanoid only fails when the system entropy source does; fall back
		// to a time-only id.
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}
