package rules

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
)

//go:embed defaults.hcl
var defaultsHCL []byte

// fileRoot decodes every top-level block a rules file may contain.
type fileRoot struct {
	Thresholds *thresholdsBlock `hcl:"thresholds,block"`
	Dispatch   *dispatchBlock   `hcl:"dispatch,block"`
	Categories []*categoryBlock `hcl:"category,block"`
	Templates  []*templateBlock `hcl:"template,block"`
	Remain     hcl.Body         `hcl:",remain"`
}

type thresholdsBlock struct {
	MinColorDistance    *float64 `hcl:"min_color_distance,optional"`
	MinFragmentLength   *int     `hcl:"min_fragment_length,optional"`
	GenericLiquidLength *int     `hcl:"generic_liquid_length,optional"`
	NoiseProbability    *float64 `hcl:"noise_probability,optional"`
	StepBudget          *int     `hcl:"step_budget,optional"`
	SlowThreshold       *string  `hcl:"slow_threshold,optional"`
	IDOffset            *int     `hcl:"id_offset,optional"`
	Degenerate          *string  `hcl:"degenerate,optional"`
}

type dispatchBlock struct {
	TemplateOrder []string `hcl:"template_order,optional"`
	FallbackOrder []string `hcl:"fallback_order,optional"`
	ColorOrder    []string `hcl:"color_order,optional"`
}

type categoryBlock struct {
	Name       string           `hcl:"name,label"`
	Keywords   []string         `hcl:"keywords"`
	Template   *string          `hcl:"template,optional"`
	Fallback   *string          `hcl:"fallback,optional"`
	ColorShift *colorShiftBlock `hcl:"color_shift,block"`
	Variants   []*variantBlock  `hcl:"variant,block"`
}

type colorShiftBlock struct {
	Offset []int `hcl:"offset"`
	Floor  []int `hcl:"floor,optional"`
}

type variantBlock struct {
	Name     string   `hcl:"name,label"`
	Keywords []string `hcl:"keywords"`
	Template string   `hcl:"template"`
}

type templateBlock struct {
	Name string `hcl:"name,label"`
	Body string `hcl:"body"`
}

// Default returns the embedded rule set. The embedded file is part of the
// build, so a decoding failure is a programming error.
func Default() *Rules {
	r, err := decode(newEmpty(), defaultsHCL, "defaults.hcl")
	if err != nil {
		panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
	}
	if err := r.Validate(); err != nil {
		panic(fmt.Sprintf("rules: embedded defaults are invalid: %v", err))
	}
	return r
}

// Load returns the default rules overlaid with the file at path. An empty
// path yields the defaults unchanged.
func Load(ctx context.Context, path string) (*Rules, error) {
	logger := ctxlog.FromContext(ctx)
	r := Default()
	if path == "" {
		logger.Debug("Using embedded pipeline rules.")
		return r, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, diags)
	}
	if err := r.merge(file.Body, path); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	logger.Debug("Loaded pipeline rules.", "path", path, "categories", len(r.Categories), "templates", len(r.Templates))
	return r, nil
}

// Parse overlays rules source onto the defaults. It is Load for in-memory
// sources.
func Parse(src []byte, filename string) (*Rules, error) {
	r, err := decode(Default(), src, filename)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", filename, err)
	}
	return r, nil
}

func newEmpty() *Rules {
	return &Rules{
		Categories: make(map[string]*Category),
		Templates:  make(map[string]string),
	}
}

func decode(r *Rules, src []byte, filename string) (*Rules, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse rules %s: %w", filename, diags)
	}
	if err := r.merge(file.Body, filename); err != nil {
		return nil, err
	}
	return r, nil
}

// merge decodes body and applies it on top of r. Categories and templates
// are replaced whole; thresholds are replaced attribute by attribute.
func (r *Rules) merge(body hcl.Body, filename string) error {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode rules %s: %w", filename, diags)
	}

	if t := root.Thresholds; t != nil {
		if err := r.mergeThresholds(t); err != nil {
			return fmt.Errorf("rules %s: %w", filename, err)
		}
	}
	if d := root.Dispatch; d != nil {
		if d.TemplateOrder != nil {
			r.Dispatch.TemplateOrder = d.TemplateOrder
		}
		if d.FallbackOrder != nil {
			r.Dispatch.FallbackOrder = d.FallbackOrder
		}
		if d.ColorOrder != nil {
			r.Dispatch.ColorOrder = d.ColorOrder
		}
	}
	for _, cb := range root.Categories {
		c, err := translateCategory(cb)
		if err != nil {
			return fmt.Errorf("rules %s: %w", filename, err)
		}
		r.Categories[c.Name] = c
	}
	for _, tb := range root.Templates {
		r.Templates[tb.Name] = tb.Body
	}
	return nil
}

func (r *Rules) mergeThresholds(t *thresholdsBlock) error {
	th := &r.Thresholds
	if t.MinColorDistance != nil {
		th.MinColorDistance = *t.MinColorDistance
	}
	if t.MinFragmentLength != nil {
		th.MinFragmentLength = *t.MinFragmentLength
	}
	if t.GenericLiquidLength != nil {
		th.GenericLiquidLength = *t.GenericLiquidLength
	}
	if t.NoiseProbability != nil {
		th.NoiseProbability = *t.NoiseProbability
	}
	if t.StepBudget != nil {
		th.StepBudget = *t.StepBudget
	}
	if t.SlowThreshold != nil {
		d, err := time.ParseDuration(*t.SlowThreshold)
		if err != nil {
			return fmt.Errorf("slow_threshold: %w", err)
		}
		th.SlowThreshold = d
	}
	if t.IDOffset != nil {
		if *t.IDOffset < 0 {
			return fmt.Errorf("id_offset must not be negative, got %d", *t.IDOffset)
		}
		th.IDOffset = uint32(*t.IDOffset)
	}
	if t.Degenerate != nil {
		th.Degenerate = *t.Degenerate
	}
	return nil
}

func translateCategory(cb *categoryBlock) (*Category, error) {
	c := &Category{
		Name:     cb.Name,
		Keywords: lowerAll(cb.Keywords),
	}
	if cb.Template != nil {
		c.Template = *cb.Template
	}
	if cb.Fallback != nil {
		c.Fallback = *cb.Fallback
	}
	if cs := cb.ColorShift; cs != nil {
		shift := &ColorShift{Floor: [3]int{-1, -1, -1}}
		if len(cs.Offset) != 3 {
			return nil, fmt.Errorf("category %q: color_shift offset needs 3 values, got %d", cb.Name, len(cs.Offset))
		}
		copy(shift.Offset[:], cs.Offset)
		if cs.Floor != nil {
			if len(cs.Floor) != 3 {
				return nil, fmt.Errorf("category %q: color_shift floor needs 3 values, got %d", cb.Name, len(cs.Floor))
			}
			copy(shift.Floor[:], cs.Floor)
		}
		c.ColorShift = shift
	}
	for _, vb := range cb.Variants {
		c.Variants = append(c.Variants, Variant{
			Name:     vb.Name,
			Keywords: lowerAll(vb.Keywords),
			Template: vb.Template,
		})
	}
	return c, nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the rule set is complete and internally consistent.
func (r *Rules) Validate() error {
	var errs []error
	th := r.Thresholds
	if th.MinColorDistance <= 0 {
		errs = append(errs, errors.New("min_color_distance must be positive"))
	}
	if th.MinFragmentLength <= 0 {
		errs = append(errs, errors.New("min_fragment_length must be positive"))
	}
	if th.NoiseProbability < 0 || th.NoiseProbability >= 1 {
		errs = append(errs, errors.New("noise_probability must be in [0,1)"))
	}
	if th.StepBudget <= 0 {
		errs = append(errs, errors.New("step_budget must be positive"))
	}
	if th.SlowThreshold <= 0 {
		errs = append(errs, errors.New("slow_threshold must be positive"))
	}
	if strings.TrimSpace(th.Degenerate) == "" {
		errs = append(errs, errors.New("degenerate must not be empty"))
	}
	if strings.TrimSpace(r.Templates["default"]) == "" {
		errs = append(errs, errors.New(`template "default" is required`))
	}
	if !strings.Contains(r.Templates["explosion"], BodyPlaceholder) {
		errs = append(errs, fmt.Errorf(`template "explosion" must contain %s`, BodyPlaceholder))
	}
	for _, name := range r.Dispatch.TemplateOrder {
		c := r.Categories[name]
		if c == nil {
			errs = append(errs, fmt.Errorf("template_order names unknown category %q", name))
			continue
		}
		if strings.TrimSpace(c.Template) == "" {
			errs = append(errs, fmt.Errorf("category %q is in template_order but has no template", name))
		}
	}
	for _, name := range r.Dispatch.FallbackOrder {
		c := r.Categories[name]
		if c == nil {
			errs = append(errs, fmt.Errorf("fallback_order names unknown category %q", name))
			continue
		}
		switch c.Fallback {
		case FallbackIgnite, FallbackFlow, FallbackRise, FallbackGravity:
		default:
			errs = append(errs, fmt.Errorf("category %q has unknown fallback %q", name, c.Fallback))
		}
	}
	for _, name := range r.Dispatch.ColorOrder {
		if r.Categories[name] == nil {
			errs = append(errs, fmt.Errorf("color_order names unknown category %q", name))
		}
	}
	return errors.Join(errs...)
}
