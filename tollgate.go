// Package tollgate wires the SDK together: configuration, logging, the
// metering pipeline, the billing gate and the tool registry, behind one
// explicitly constructed object. There is no module-level mutable state;
// tests get isolation by constructing a fresh SDK.
package tollgate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tollgate/tollgate-go/internal/config"
	"github.com/tollgate/tollgate-go/internal/logger"
	"github.com/tollgate/tollgate-go/pkg/billing"
	"github.com/tollgate/tollgate-go/pkg/health"
	"github.com/tollgate/tollgate-go/pkg/mcpserver"
	"github.com/tollgate/tollgate-go/pkg/metering"
	"github.com/tollgate/tollgate-go/pkg/toolset"
)

// Options configures SDK construction. Zero values defer to configuration
// defaults and environment variables.
type Options struct {
	// ConfigPath points at an optional JSON config file.
	ConfigPath string

	// APIKey overrides the configured/environment key.
	APIKey string

	// ServerName and ServerVersion identify this server in metric batches.
	ServerName    string
	ServerVersion string

	// LogLevel and LogPretty configure process logging. Empty level means
	// info.
	LogLevel  string
	LogPretty bool

	// Logger, when set, is used as-is and LogLevel/LogPretty are ignored.
	Logger *zerolog.Logger
}

// SDK is the explicit dependency context for one server process.
type SDK struct {
	cfg    *config.Config
	logger zerolog.Logger

	Recorder metering.Recorder
	Gate     *billing.Gate
	Billing  *billing.Client
	Tools    *toolset.Set
	Health   *health.Checker

	spool *metering.Spool
}

// New constructs the SDK. Without an API key, billing runs in bypass mode
// and metering in demo (log-only) mode; nothing fails at startup for lack
// of credentials.
func New(opts Options) (*SDK, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
		cfg.BypassBilling = false
	}
	if opts.ServerName != "" {
		cfg.ServerName = opts.ServerName
	}
	if opts.ServerVersion != "" {
		cfg.ServerVersion = opts.ServerVersion
	}

	var lg zerolog.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
		log.Logger = lg
	} else {
		lg = logger.Setup(logger.Config{
			Level:     opts.LogLevel,
			Pretty:    opts.LogPretty,
			Redaction: true,
		})
	}

	s := &SDK{cfg: cfg, logger: lg}

	if cfg.APIKey == "" {
		s.Recorder = metering.NewDemoTracker(&lg)
		lg.Info().Msg("No API key configured, metering runs in demo mode")
	} else {
		var spool *metering.Spool
		if cfg.SpoolPath != "" {
			spool, err = metering.OpenSpool(cfg.SpoolPath)
			if err != nil {
				return nil, fmt.Errorf("opening metric spool: %w", err)
			}
			s.spool = spool
		}
		s.Recorder = metering.NewTracker(metering.Config{
			Endpoint:      cfg.MeteringEndpoint,
			APIKey:        cfg.APIKey,
			Server:        metering.ServerInfo{Name: cfg.ServerName, Version: cfg.ServerVersion},
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval(),
			Debug:         cfg.Debug,
			Spool:         spool,
			Logger:        &lg,
		})
	}

	s.Billing = billing.NewClient(billing.ClientConfig{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Bypass:       cfg.BypassBilling,
		DashboardURL: cfg.DashboardURL,
		Logger:       &lg,
	})
	s.Gate = billing.NewGate(s.Billing, &lg)

	s.Tools = toolset.New(toolset.Config{
		Recorder: s.Recorder,
		Gate:     s.Gate,
		Logger:   &lg,
	})

	s.Health = health.NewChecker()

	if cfg.BypassBilling {
		lg.Info().Msg("Billing gate running in bypass mode")
	}

	return s, nil
}

// ServeStdio serves the registered tools over MCP stdio until ctx ends.
func (s *SDK) ServeStdio(ctx context.Context) error {
	return mcpserver.ServeStdio(ctx, s.Tools, mcpserver.Options{
		Name:    s.cfg.ServerName,
		Version: s.cfg.ServerVersion,
	})
}

// Shutdown drains the metering pipeline and releases resources. Call it
// from the process termination path; delivery is best-effort.
func (s *SDK) Shutdown(ctx context.Context) {
	if s.Recorder != nil {
		s.Recorder.Shutdown(ctx)
	}
	if s.spool != nil {
		if err := s.spool.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close metric spool")
		}
	}
}
