// Package health aggregates named readiness checks into a single status
// report.
package health

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Check probes one dependency. A non-nil error (or a panic) marks the check
// failed without affecting sibling checks.
type Check func(ctx context.Context) error

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Report is the aggregated outcome of one run.
type Report struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

// Checker holds a set of named checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Add registers a named check, replacing any previous check of that name.
func (c *Checker) Add(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes every check and reports healthy only when all pass.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status: StatusHealthy,
		Checks: make(map[string]bool, len(checks)),
	}

	for name, check := range checks {
		ok := runOne(ctx, name, check)
		report.Checks[name] = ok
		if !ok {
			report.Status = StatusDegraded
		}
	}

	return report
}

// runOne isolates a single check so its panic or error cannot abort the run.
func runOne(ctx context.Context, name string, check Check) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("check", name).Interface("panic", r).Msg("Health check panicked")
			ok = false
		}
	}()

	if err := check(ctx); err != nil {
		log.Debug().Str("check", name).Err(err).Msg("Health check failed")
		return false
	}
	return true
}
