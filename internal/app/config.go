package app

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Backend kinds accepted by Config.Backend.
const (
	BackendFile     = "file"
	BackendHTTP     = "http"
	BackendSocketIO = "socketio"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ParticlesPath string // YAML fixtures, file or directory
	RulesPath     string // optional HCL override of the pipeline rules

	Backend          string
	GeneratorURL     string
	GeneratorTimeout time.Duration

	Width  int
	Height int
	Ticks  int
	TPS    int // 0 runs ticks back to back
	Seed   int64

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	TelemetryPath   string // CSV of per-particle action telemetry
	SlowThreshold   time.Duration
}

// DefaultConfig returns the configuration the CLI starts from.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendFile,
		GeneratorTimeout: 30 * time.Second,
		Width:            120,
		Height:           80,
		Ticks:            300,
		Seed:             1,
		LogFormat:        "text",
		LogLevel:         "info",
	}
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	switch cfg.Backend {
	case BackendFile:
		if cfg.ParticlesPath == "" {
			errs = append(errs, errors.New("ParticlesPath is required for the file backend"))
		}
	case BackendHTTP, BackendSocketIO:
		if cfg.GeneratorURL == "" {
			errs = append(errs, fmt.Errorf("GeneratorURL is required for the %s backend", cfg.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", cfg.Backend))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive, got %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Ticks < 0 {
		errs = append(errs, errors.New("Ticks cannot be negative"))
	}
	if cfg.TPS < 0 {
		errs = append(errs, errors.New("TPS cannot be negative"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log level %q", cfg.LogLevel))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q", cfg.LogFormat))
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort))
	}
	if cfg.SlowThreshold < 0 {
		errs = append(errs, errors.New("SlowThreshold cannot be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
