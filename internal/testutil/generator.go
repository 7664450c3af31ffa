package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/specialistvlad/sandforge/internal/particle"
)

// ErrNotScripted is returned by FakeGenerator for names it has no answer for.
var ErrNotScripted = errors.New("no scripted response")

// FakeGenerator answers generation requests from a fixed table.
type FakeGenerator struct {
	mu        sync.Mutex
	responses map[string]particle.Description
	failures  map[string]error
	delay     time.Duration
	calls     map[string]int
}

// NewFakeGenerator returns a generator that knows the given descriptions,
// keyed by normalized name.
func NewFakeGenerator(descs ...particle.Description) *FakeGenerator {
	g := &FakeGenerator{
		responses: make(map[string]particle.Description),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
	for _, d := range descs {
		g.Set(d)
	}
	return g
}

// Set replaces the scripted answer for d's name.
func (g *FakeGenerator) Set(d particle.Description) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[particle.NormalizeName(d.Name)] = d
}

// Fail makes requests for name return err.
func (g *FakeGenerator) Fail(name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[particle.NormalizeName(name)] = err
}

// SetDelay makes every request wait before answering.
func (g *FakeGenerator) SetDelay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delay = d
}

// Calls returns how many times name was requested.
func (g *FakeGenerator) Calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[particle.NormalizeName(name)]
}

// Generate implements the generator interface.
func (g *FakeGenerator) Generate(ctx context.Context, name string) (particle.Description, error) {
	key := particle.NormalizeName(name)
	g.mu.Lock()
	g.calls[key]++
	delay := g.delay
	d, ok := g.responses[key]
	failure := g.failures[key]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return particle.Description{}, &particle.GenerationError{Name: key, Op: "request", Err: ctx.Err()}
		}
	}
	if failure != nil {
		return particle.Description{}, &particle.GenerationError{Name: key, Op: "request", Err: failure}
	}
	if !ok {
		return particle.Description{}, &particle.GenerationError{Name: key, Op: "request", Err: ErrNotScripted}
	}
	return d, nil
}
