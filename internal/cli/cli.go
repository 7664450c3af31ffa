package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/sandforge/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Invocation is a parsed command line.
type Invocation struct {
	Config *app.Config
	// Names are the particles to generate. Empty means every fixture.
	Names []string
}

// Parse processes command-line arguments. It returns the invocation, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	defaults := app.DefaultConfig()
	flagSet := flag.NewFlagSet("sandforge", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Sandforge - grow new falling-sand particles from their names.

Usage:
  sandforge [options] [PARTICLES_PATH] [NAME...]

Arguments:
  PARTICLES_PATH
    YAML fixture file or directory, used by the file backend.
  NAME
    Particles to generate. Without names every fixture is generated.

Options:
`)
		flagSet.PrintDefaults()
	}

	particlesFlag := flagSet.String("particles", "", "Path to the particle fixture file or directory.")
	pFlag := flagSet.String("p", "", "Path to the particle fixture file or directory (shorthand).")
	rulesFlag := flagSet.String("rules", "", "Optional HCL file overriding the pipeline rules.")
	backendFlag := flagSet.String("backend", defaults.Backend, "Generator backend. Options: 'file', 'http', 'socketio'.")
	urlFlag := flagSet.String("generator-url", "", "Generator endpoint for the http and socketio backends.")
	timeoutFlag := flagSet.Duration("generator-timeout", defaults.GeneratorTimeout, "Timeout for one generation request.")
	widthFlag := flagSet.Int("width", defaults.Width, "Grid width in cells.")
	heightFlag := flagSet.Int("height", defaults.Height, "Grid height in cells.")
	ticksFlag := flagSet.Int("ticks", defaults.Ticks, "Number of simulation ticks to run.")
	tpsFlag := flagSet.Int("tps", defaults.TPS, "Ticks per second. 0 runs as fast as possible.")
	seedFlag := flagSet.Int64("seed", defaults.Seed, "Seed for the world's random source.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and query server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	telemetryFlag := flagSet.String("telemetry", "", "Write per-particle action telemetry as CSV to this path.")
	slowFlag := flagSet.Duration("slow-threshold", 0, "Warn about particle actions slower than this. 0 keeps the rules value.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	backend := strings.ToLower(*backendFlag)
	positional := flagSet.Args()
	path := *particlesFlag
	if path == "" {
		path = *pFlag
	}
	if path == "" && backend == app.BackendFile && len(positional) > 0 {
		path, positional = positional[0], positional[1:]
	}
	slog.Debug("Particles path determined.", "path", path, "names", positional)

	if backend == app.BackendFile && path == "" {
		slog.Debug("No particles path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		ParticlesPath:    path,
		RulesPath:        *rulesFlag,
		Backend:          backend,
		GeneratorURL:     *urlFlag,
		GeneratorTimeout: *timeoutFlag,
		Width:            *widthFlag,
		Height:           *heightFlag,
		Ticks:            *ticksFlag,
		TPS:              *tpsFlag,
		Seed:             *seedFlag,
		LogFormat:        strings.ToLower(*logFormatFlag),
		LogLevel:         strings.ToLower(*logLevelFlag),
		HealthcheckPort:  *healthPortFlag,
		TelemetryPath:    *telemetryFlag,
		SlowThreshold:    *slowFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return &Invocation{Config: config, Names: positional}, false, nil
}
