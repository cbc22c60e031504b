package metering

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Reporter periodically logs a one-line usage summary from tracker counters.
// Long-running servers use it to keep an operational trace of metering
// health without scraping Prometheus.
type Reporter struct {
	tracker *Tracker
	logger  zerolog.Logger
	cron    *cron.Cron
}

// NewReporter schedules summary logging on the given cron spec (for example
// "@every 1h" or "0 * * * *"). The schedule starts immediately.
func NewReporter(tracker *Tracker, spec string, logger *zerolog.Logger) (*Reporter, error) {
	l := log.Logger
	if logger != nil {
		l = *logger
	}

	r := &Reporter{
		tracker: tracker,
		logger:  l.With().Str("component", "metering-reporter").Logger(),
		cron:    cron.New(),
	}

	if _, err := r.cron.AddFunc(spec, r.report); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}

	r.cron.Start()
	return r, nil
}

func (r *Reporter) report() {
	tracked, delivered, failed, buffered := r.tracker.Stats()
	r.logger.Info().
		Uint64("tracked", tracked).
		Uint64("delivered", delivered).
		Uint64("failed_flushes", failed).
		Int("buffered", buffered).
		Msg("Metering usage summary")
}

// Stop halts the schedule. A report already in progress completes.
func (r *Reporter) Stop() {
	r.cron.Stop()
}
