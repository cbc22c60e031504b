// Package config resolves SDK configuration from defaults, an optional JSON
// config file and TOLLGATE_-prefixed environment variables. A missing API
// key deterministically selects billing bypass mode rather than failing
// startup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultBaseURL          = "https://api.tollgate.dev"
	DefaultMeteringEndpoint = DefaultBaseURL + "/v1/metrics"
	DefaultBatchSize        = 20
	DefaultFlushIntervalMS  = 60_000
)

// Config is the resolved SDK configuration.
type Config struct {
	APIKey           string `json:"api_key" mapstructure:"api_key"`
	BaseURL          string `json:"base_url" mapstructure:"base_url"`
	MeteringEndpoint string `json:"metering_endpoint" mapstructure:"metering_endpoint"`
	DashboardURL     string `json:"dashboard_url" mapstructure:"dashboard_url"`
	ServerName       string `json:"server_name" mapstructure:"server_name"`
	ServerVersion    string `json:"server_version" mapstructure:"server_version"`
	Debug            bool   `json:"debug" mapstructure:"debug"`
	BypassBilling    bool   `json:"bypass_billing" mapstructure:"bypass_billing"`
	BatchSize        int    `json:"batch_size" mapstructure:"batch_size"`
	FlushIntervalMS  int    `json:"flush_interval_ms" mapstructure:"flush_interval_ms"`
	SpoolPath        string `json:"spool_path" mapstructure:"spool_path"`
}

// FlushInterval returns the flush interval as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// Load resolves configuration. configPath may be empty; environment
// variables override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Every key needs a registered default so environment values survive
	// Unmarshal.
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("metering_endpoint", DefaultMeteringEndpoint)
	v.SetDefault("dashboard_url", DefaultBaseURL+"/dashboard")
	v.SetDefault("server_name", "tollgate-server")
	v.SetDefault("server_version", "")
	v.SetDefault("debug", false)
	v.SetDefault("bypass_billing", false)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("flush_interval_ms", DefaultFlushIntervalMS)
	v.SetDefault("spool_path", "")

	v.SetEnvPrefix("TOLLGATE")
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Without an API key neither billing nor metering can authenticate;
	// select the safe local modes instead of failing startup.
	if cfg.APIKey == "" {
		cfg.BypassBilling = true
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushIntervalMS <= 0 {
		cfg.FlushIntervalMS = DefaultFlushIntervalMS
	}

	return cfg, nil
}
