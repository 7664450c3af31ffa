package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/sandforge/internal/action"
	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/fragment"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/pipeline"
	"github.com/specialistvlad/sandforge/internal/registry"
	"github.com/specialistvlad/sandforge/internal/rules"
	"github.com/specialistvlad/sandforge/internal/sim"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx    context.Context
	outW   io.Writer
	logger *slog.Logger
	config *Config

	rules     *rules.Rules
	world     *sim.World
	monitor   *action.Monitor
	registry  *registry.Registry
	generator generator.Generator
	pipeline  *pipeline.Service

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, world and
// registry. With no backends given, the core backends are installed.
func NewApp(outW io.Writer, cfg *Config, backends ...generator.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	r, err := loadRules(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(backends) == 0 {
		backends = coreBackends
	}
	table := generator.NewBackends().Install(backends...)
	gen, err := table.New(ctx, cfg.Backend, generator.Options{
		URL:     cfg.GeneratorURL,
		Path:    cfg.ParticlesPath,
		Timeout: cfg.GeneratorTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s generator: %w", cfg.Backend, err)
	}
	logger.Debug("Generator backend ready.", "backend", cfg.Backend, "available", table.Kinds())

	world := sim.New(cfg.Width, cfg.Height, cfg.Seed)
	monitor := action.NewMonitor()
	rt := fragment.NewRuntime(world, sim.BuiltinIDs(), logger)
	chain := registry.NewChain(r, rt, action.NewWrapper(world, r, monitor, logger))
	reg := registry.New(r.Thresholds.IDOffset, chain, logger)

	return &App{
		ctx:       ctx,
		outW:      outW,
		logger:    logger,
		config:    cfg,
		rules:     r,
		world:     world,
		monitor:   monitor,
		registry:  reg,
		generator: gen,
		pipeline:  pipeline.New(gen, reg, logger, 0),
	}, nil
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// World returns the simulated world.
func (a *App) World() *sim.World { return a.world }

// Monitor returns the action telemetry.
func (a *App) Monitor() *action.Monitor { return a.monitor }

// Pipeline returns the generation pipeline.
func (a *App) Pipeline() *pipeline.Service { return a.pipeline }
