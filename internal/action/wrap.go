package action

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/specialistvlad/sandforge/internal/rules"
	"github.com/specialistvlad/sandforge/internal/sim"
)

// Func is the per-cell callable stored for a particle id.
type Func = func(x, y, i int)

// Runner executes a compiled fragment for one cell.
type Runner func(x, y, i int) error

// World is the part of the simulation the fallbacks need.
type World interface {
	Gravity(x, y, i int, fallAdjacent bool, chance float64) bool
	DensityFlow(x, y, i int, chance float64) bool
	Rise(x, y, i int, chance float64) bool
	SetIndex(i int, id uint32) bool
	Random() float64
}

// softGravityChance is the fall probability used by the noise floor.
const softGravityChance = 0.5

// Wrapper builds wrapped callables that share a world, rules and monitor.
type Wrapper struct {
	world   World
	rules   *rules.Rules
	monitor *Monitor
	logger  *slog.Logger

	warnings *limiter.TokenBucket
}

// NewWrapper returns a wrapper. A nil monitor disables telemetry.
func NewWrapper(world World, r *rules.Rules, monitor *Monitor, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	if monitor == nil {
		monitor = NewMonitor()
	}
	w := &Wrapper{world: world, rules: r, monitor: monitor, logger: logger}

	// At most one slow warning per particle every ten seconds.
	tb, err := limiter.NewTokenBucket(limiter.Config{
		Rate:     1,
		Duration: 10 * time.Second,
		Burst:    1,
	}, store.NewMemoryStore(time.Minute))
	if err != nil {
		logger.Warn("Slow action warnings are not rate limited.", "error", err)
	} else {
		w.warnings = tb
	}
	return w
}

// Monitor returns the monitor the wrapper reports to.
func (w *Wrapper) Monitor() *Monitor { return w.monitor }

// Wrap returns the two-layer callable for a particle name.
func (w *Wrapper) Wrap(name string, run Runner) Func {
	c := w.monitor.counters(name)
	kind := w.rules.Fallback(name)
	noise := w.rules.Thresholds.NoiseProbability
	slow := w.rules.Thresholds.SlowThreshold

	return func(x, y, i int) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Debug("Outer fallback failed.", "name", name, "panic", r)
			}
			w.observe(name, c, time.Since(start), slow)
		}()

		c.calls.Add(1)
		if err := w.inner(name, c, run, noise, x, y, i); err != nil {
			c.outerFallbacks.Add(1)
			w.logger.Debug("Applying outer fallback.", "name", name, "fallback", kind, "error", err)
			w.fallback(kind, x, y, i)
		}
	}
}

// inner runs the fragment behind the noise floor. A fragment failure is
// answered with a strong gravity fall; only a failure of that fallback is
// returned.
func (w *Wrapper) inner(name string, c *counters, run Runner, noise float64, x, y, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inner layer panicked: %v", r)
		}
	}()

	if noise > 0 && w.world.Random() < noise {
		c.noise.Add(1)
		w.world.Gravity(x, y, i, false, softGravityChance)
		return nil
	}
	if runErr := protect(run, x, y, i); runErr != nil {
		c.innerFallbacks.Add(1)
		w.logger.Debug("Fragment failed, applying gravity.", "name", name, "error", runErr)
		w.world.Gravity(x, y, i, true, 1)
	}
	return nil
}

func protect(run Runner, x, y, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fragment panicked: %v", r)
		}
	}()
	if run == nil {
		return fmt.Errorf("no fragment")
	}
	return run(x, y, i)
}

func (w *Wrapper) fallback(kind string, x, y, i int) {
	switch kind {
	case rules.FallbackIgnite:
		w.world.SetIndex(i, sim.Fire)
	case rules.FallbackFlow:
		w.world.DensityFlow(x, y, i, 1)
	case rules.FallbackRise:
		w.world.Rise(x, y, i, 1)
	default:
		w.world.Gravity(x, y, i, true, 1)
	}
}

func (w *Wrapper) observe(name string, c *counters, d, slow time.Duration) {
	c.record(d)
	if slow <= 0 || d <= slow {
		return
	}
	c.slowCalls.Add(1)
	if w.warnings == nil || w.warnings.Allow(name) {
		w.logger.Warn("Slow particle action.", "name", name, "duration", d, "threshold", slow)
	}
}
