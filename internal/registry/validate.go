package registry

import (
	"context"

	"github.com/specialistvlad/sandforge/internal/action"
	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/fragment"
	"github.com/specialistvlad/sandforge/internal/particle"
	"github.com/specialistvlad/sandforge/internal/rewrite"
	"github.com/specialistvlad/sandforge/internal/rules"
	"github.com/specialistvlad/sandforge/internal/sanitize"
	"github.com/specialistvlad/sandforge/internal/sim"
	"github.com/specialistvlad/sandforge/internal/uniqueness"
)

// Builder turns a description into a runnable action for a given id.
type Builder interface {
	Build(ctx context.Context, d particle.Description, id uint32) (Built, error)
}

// Built is the result of a successful build.
type Built struct {
	// Description is the description to store, with its color repaired
	// when it was flagged.
	Description particle.Description
	// Source is the processed fragment the action was compiled from.
	Source string
	// Notes lists the rewrites that were applied.
	Notes  []string
	Action action.Func
}

// Chain is the standard Builder: validate, sanitize, rewrite, compile, wrap.
type Chain struct {
	rules     *rules.Rules
	validator *uniqueness.Validator
	rewriter  *rewrite.Rewriter
	runtime   *fragment.Runtime
	wrapper   *action.Wrapper
}

// NewChain returns a builder whose actions run on rt and report through
// wrapper.
func NewChain(r *rules.Rules, rt *fragment.Runtime, wrapper *action.Wrapper) *Chain {
	return &Chain{
		rules:     r,
		validator: uniqueness.New(r, nil),
		rewriter:  rewrite.New(r, sim.BuiltinIDs()),
		runtime:   rt,
		wrapper:   wrapper,
	}
}

// Build implements Builder.
func (c *Chain) Build(ctx context.Context, d particle.Description, id uint32) (Built, error) {
	logger := ctxlog.FromContext(ctx)

	d, res := c.validator.Check(d)
	if !res.Valid {
		logger.Info("Particle color adjusted.", "reason", res.Reason, "nearest", res.Nearest, "color", d.Color.Hex())
	}

	clean, found := sanitize.Report(d.ActionCode)
	if found.Total() > 0 {
		logger.Debug("Fragment sanitized.",
			"functions", found.Functions,
			"loops", found.Loops,
			"dynamic", found.DynamicCode,
			"host", found.HostAccess)
	}

	src, notes := c.rewriter.Explain(clean, d.Identifier(), id)
	if len(notes) > 0 {
		logger.Debug("Fragment rewritten.", "rewrites", notes)
	}

	prog, err := fragment.Compile(src, c.rules.Thresholds.StepBudget)
	if err != nil {
		return Built{}, &particle.RegistrationError{Name: d.Identifier(), Stage: "compile", Err: err}
	}
	logger.Debug("Fragment compiled.", "calls", prog.Calls())
	if funcs, vars := c.runtime.Unknown(prog); len(funcs)+len(vars) > 0 {
		logger.Warn("Fragment references unknown names and will fall back at runtime.", "functions", funcs, "variables", vars)
	}

	rt := c.runtime
	run := func(x, y, i int) error { return prog.Exec(rt, x, y, i) }
	return Built{
		Description: d,
		Source:      prog.Source(),
		Notes:       notes,
		Action:      c.wrapper.Wrap(d.Identifier(), run),
	}, nil
}
