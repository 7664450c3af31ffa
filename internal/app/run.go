package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/pipeline"
	"github.com/specialistvlad/sandforge/internal/sim"
)

// Run submits every requested particle, seeds the world and runs the tick
// loop. With no names, a generator holding local fixtures has all of them
// registered before the first tick. Finished registrations are pumped
// between ticks and painted into the world. The returned error joins every
// generation and registration failure.
func (a *App) Run(ctx context.Context, names []string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	for _, name := range names {
		a.pipeline.Submit(ctx, name)
	}

	a.seedWorld()

	var failures []error
	if len(names) == 0 {
		ids, err := a.preload(ctx)
		if err != nil {
			failures = append(failures, err)
		}
		for _, id := range ids {
			a.place(id)
		}
		if len(ids) == 0 {
			a.logger.Warn("No particles requested, running built-ins only.")
		}
	}
	handle := func(outcomes []pipeline.Outcome) {
		for _, o := range outcomes {
			if o.Err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", o.Name, o.Err))
				continue
			}
			a.place(o.ID)
		}
	}

	var pace <-chan time.Time
	if a.config.TPS > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(a.config.TPS))
		defer ticker.Stop()
		pace = ticker.C
	}

	a.logger.Info("Simulation starting.", "width", a.config.Width, "height", a.config.Height, "ticks", a.config.Ticks, "requested", len(names), "registered", a.registry.Len())
	start := time.Now()
	ticks := 0
	for ticks < a.config.Ticks && ctx.Err() == nil {
		if pace != nil {
			select {
			case <-ctx.Done():
				continue
			case <-pace:
			}
		}
		handle(a.pipeline.Pump(ctx))
		a.world.Step(a.registry.Table())
		ticks++
	}
	elapsed := time.Since(start)

	timeout := a.config.GeneratorTimeout
	if timeout <= 0 {
		timeout = generator.DefaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	handle(a.pipeline.Wait(waitCtx))
	if n := a.pipeline.Pending(); n > 0 {
		failures = append(failures, fmt.Errorf("%d generation requests did not finish within %s", n, timeout))
	}

	a.logSummary(ticks, elapsed)
	if err := a.writeTelemetry(); err != nil {
		failures = append(failures, err)
	}
	if ctx.Err() != nil {
		a.logger.Warn("Simulation interrupted.", "ticks", ticks)
	}

	a.logger.Debug("App.Run method finished.")
	return errors.Join(failures...)
}

// seedWorld paints a few built-in features so new particles have something
// to interact with.
func (a *App) seedWorld() {
	w := a.world
	width, height := w.Width(), w.Height()
	for x := range width {
		w.Set(x, height-1, sim.Rock)
	}
	r := max(1, min(width, height)/12)
	features := []uint32{sim.Sand, sim.Water, sim.Plant, sim.Fire, sim.Oil, sim.Lava}
	for _, id := range features {
		w.Paint(w.IntN(width), height/2+w.IntN(max(1, height/2-1)), r, id)
	}
}

// place drops a blob of a freshly registered particle near the top.
func (a *App) place(id uint32) {
	w := a.world
	r := max(1, min(w.Width(), w.Height())/16)
	x, y := w.IntN(w.Width()), w.IntN(max(1, w.Height()/3))
	w.Paint(x, y, r, id)
	a.logger.Debug("Particle placed.", "color_id", id, "x", x, "y", y, "radius", r)
}

func (a *App) logSummary(ticks int, elapsed time.Duration) {
	counts := a.world.Counts()
	for _, e := range a.registry.Entries() {
		stats, _ := a.monitor.Stats(e.Name)
		a.logger.Info("Particle summary.",
			"name", e.Name,
			"color_id", e.ColorID,
			"color", e.Color.Hex(),
			"cells", counts[e.ColorID],
			"calls", stats.Calls,
			"inner_fallbacks", stats.InnerFallbacks,
			"outer_fallbacks", stats.OuterFallbacks,
			"slow_calls", stats.SlowCalls)
	}
	a.logger.Info("Simulation finished.", "ticks", ticks, "elapsed", elapsed, "particles", a.registry.Len())
}

func (a *App) writeTelemetry() error {
	if a.config.TelemetryPath == "" {
		return nil
	}
	f, err := os.Create(a.config.TelemetryPath)
	if err != nil {
		return fmt.Errorf("failed to create telemetry file: %w", err)
	}
	if err := a.monitor.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write telemetry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write telemetry: %w", err)
	}
	a.logger.Info("Telemetry written.", "path", a.config.TelemetryPath)
	return nil
}
