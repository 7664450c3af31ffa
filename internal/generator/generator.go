// Package generator defines the contract with the external service that
// describes new particles, the wire format it answers with, and the table
// of backends the application can pick from.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/sandforge/internal/particle"
)

// Generator produces a description for a particle name. Every failure is a
// *particle.GenerationError.
type Generator interface {
	Generate(ctx context.Context, name string) (particle.Description, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, name string) (particle.Description, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, name string) (particle.Description, error) {
	return f(ctx, name)
}

// Options configures a backend. Each backend reads the fields it needs.
type Options struct {
	URL                string
	Namespace          string
	Path               string
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Logger receives events a backend raises outside of any request, such
	// as circuit breaker transitions. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultTimeout bounds a generation request when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// TimeoutOrDefault returns o.Timeout or DefaultTimeout.
func (o Options) TimeoutOrDefault() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// LoggerOrDefault returns o.Logger or slog.Default().
func (o Options) LoggerOrDefault() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Factory builds a generator from options.
type Factory func(ctx context.Context, opts Options) (Generator, error)

// Module is implemented by every backend package.
type Module interface {
	Register(b *Backends)
}

// Backends maps backend kinds to factories.
type Backends struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewBackends returns an empty table.
func NewBackends() *Backends {
	return &Backends{factories: make(map[string]Factory)}
}

// Install registers every module.
func (b *Backends) Install(modules ...Module) *Backends {
	for _, m := range modules {
		m.Register(b)
	}
	return b
}

// RegisterBackend adds a factory. Registering a kind twice is a programming
// error and panics.
func (b *Backends) RegisterBackend(kind string, f Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.factories[kind]; exists {
		panic(fmt.Sprintf("generator backend '%s' already registered", kind))
	}
	slog.Debug("Registering generator backend.", "kind", kind)
	b.factories[kind] = f
}

// Kinds returns the registered kinds, sorted.
func (b *Backends) Kinds() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.factories))
	for kind := range b.factories {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}

// New builds a generator of the given kind.
func (b *Backends) New(ctx context.Context, kind string, opts Options) (Generator, error) {
	b.mu.RLock()
	f, ok := b.factories[kind]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown generator backend %q (available: %v)", kind, b.Kinds())
	}
	return f(ctx, opts)
}
