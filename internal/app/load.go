package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/particle"
	"github.com/specialistvlad/sandforge/internal/rules"
)

// loadRules reads the pipeline rules and applies the config overrides.
func loadRules(ctx context.Context, cfg *Config) (*rules.Rules, error) {
	logger := ctxlog.FromContext(ctx)
	r, err := rules.Load(ctx, cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if cfg.SlowThreshold > 0 {
		r.Thresholds.SlowThreshold = cfg.SlowThreshold
	}
	logger.Debug("Pipeline rules ready.",
		"id_offset", r.Thresholds.IDOffset,
		"slow_threshold", r.Thresholds.SlowThreshold,
		"categories", len(r.Categories))
	return r, nil
}

// catalog is implemented by generators that hold their particles locally.
// Those are registered up front instead of going through the pipeline.
type catalog interface {
	Descriptions() []particle.Description
}

// preload registers every particle the generator holds locally. The
// returned error joins the failed registrations.
func (a *App) preload(ctx context.Context) ([]uint32, error) {
	c, ok := a.generator.(catalog)
	if !ok {
		return nil, nil
	}
	return a.registry.RegisterAll(ctx, c.Descriptions())
}
