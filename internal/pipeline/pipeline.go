// Package pipeline connects the generator to the registry: a name goes in,
// a color id or an error comes out.
//
// Generation is the only slow, asynchronous step. Submit runs it on its own
// goroutine and parks the result; Pump registers parked results on the
// caller's goroutine, which is the tick loop, so registration never races a
// tick. Generate does the whole thing synchronously.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// DefaultQueue is the number of finished generations that can wait for a
// pump before their goroutines block.
const DefaultQueue = 64

// Registrar stores a description and returns its color id.
type Registrar interface {
	Register(ctx context.Context, d particle.Description) (uint32, error)
}

// Outcome is the result of one submitted name.
type Outcome struct {
	Name string
	ID   uint32
	Err  error
}

type completion struct {
	ctx  context.Context
	name string
	desc particle.Description
	err  error
}

// Service runs names through generation and registration.
type Service struct {
	gen       generator.Generator
	reg       Registrar
	logger    *slog.Logger
	completed chan completion
	pending   atomic.Int64
}

// New returns a service. A non-positive queue selects DefaultQueue.
func New(gen generator.Generator, reg Registrar, logger *slog.Logger, queue int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &Service{gen: gen, reg: reg, logger: logger, completed: make(chan completion, queue)}
}

// Generate requests name and registers the answer. A generation failure is
// returned as is and leaves the registry untouched.
func (s *Service) Generate(ctx context.Context, name string) (uint32, error) {
	ctx = s.context(ctx, name)
	d, err := s.gen.Generate(ctx, name)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Particle generation failed.", "error", err)
		return 0, err
	}
	return s.reg.Register(ctx, d)
}

// Submit starts generating name in the background. The request is not
// cancelled when ctx is; its result is delivered by a later Pump.
func (s *Service) Submit(ctx context.Context, name string) {
	ctx = context.WithoutCancel(s.context(ctx, name))
	s.pending.Add(1)
	ctxlog.FromContext(ctx).Debug("Particle generation submitted.")
	go func() {
		d, err := s.gen.Generate(ctx, name)
		s.completed <- completion{ctx: ctx, name: name, desc: d, err: err}
	}()
}

// Pending returns the number of submitted names not yet pumped.
func (s *Service) Pending() int { return int(s.pending.Load()) }

// Pump registers every finished generation without waiting for the ones
// still in flight.
func (s *Service) Pump(ctx context.Context) []Outcome {
	var out []Outcome
	for {
		select {
		case c := <-s.completed:
			out = append(out, s.finish(c))
		default:
			return out
		}
	}
}

// Wait pumps until nothing is pending or ctx is done.
func (s *Service) Wait(ctx context.Context) []Outcome {
	var out []Outcome
	for s.Pending() > 0 {
		select {
		case c := <-s.completed:
			out = append(out, s.finish(c))
		case <-ctx.Done():
			return out
		}
	}
	return out
}

func (s *Service) finish(c completion) Outcome {
	defer s.pending.Add(-1)
	logger := ctxlog.FromContext(c.ctx)
	if c.err != nil {
		logger.Warn("Particle generation failed.", "error", c.err)
		return Outcome{Name: c.name, Err: c.err}
	}
	id, err := s.reg.Register(c.ctx, c.desc)
	return Outcome{Name: c.name, ID: id, Err: err}
}

func (s *Service) context(ctx context.Context, name string) context.Context {
	return ctxlog.WithLogger(ctx, s.logger.With("request", name))
}
