package fragment

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/specialistvlad/sandforge/internal/sim"
)

// Runtime binds the primitive function table and the constant variables to
// one world. Programs are executed against a runtime; building one per world
// keeps the per-call cost to a small variable map.
type Runtime struct {
	world  *sim.World
	base   *hcl.EvalContext
	logger *slog.Logger
}

// runtimeVars are set per call.
var runtimeVars = []string{"x", "y", "i"}

// NewRuntime builds the evaluation environment for w. builtins maps element
// identifiers to ids.
func NewRuntime(w *sim.World, builtins map[string]uint32, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	vars := make(map[string]cty.Value, len(builtins)+3)
	for name, id := range builtins {
		vars[name] = cty.NumberUIntVal(uint64(id))
	}
	vars["width"] = cty.NumberIntVal(int64(w.Width()))
	vars["height"] = cty.NumberIntVal(int64(w.Height()))
	vars["inert"] = cty.EmptyObjectVal

	rt := &Runtime{world: w, logger: logger}
	rt.base = &hcl.EvalContext{
		Variables: vars,
		Functions: rt.functions(),
	}
	return rt
}

// World returns the bound world.
func (rt *Runtime) World() *sim.World { return rt.world }

// Unknown reports the functions and variables p references that neither the
// runtime nor the program itself defines. They fail at execution time.
func (rt *Runtime) Unknown(p *Program) (funcs, vars []string) {
	knownFuncs := make(map[string]struct{}, len(rt.base.Functions))
	for name := range rt.base.Functions {
		knownFuncs[name] = struct{}{}
	}
	knownVars := make(map[string]struct{}, len(rt.base.Variables)+len(p.locals)+len(runtimeVars))
	for name := range rt.base.Variables {
		knownVars[name] = struct{}{}
	}
	for _, name := range runtimeVars {
		knownVars[name] = struct{}{}
	}
	for name := range p.locals {
		knownVars[name] = struct{}{}
	}
	return p.scan.Unknown(knownFuncs, knownVars)
}

var coordID = []function.Parameter{
	{Name: "x", Type: cty.Number},
	{Name: "y", Type: cty.Number},
	{Name: "id", Type: cty.Number},
}

var coordIndex = []function.Parameter{
	{Name: "x", Type: cty.Number},
	{Name: "y", Type: cty.Number},
	{Name: "i", Type: cty.Number},
}

var optional = &function.Parameter{
	Name:             "options",
	Type:             cty.DynamicPseudoType,
	AllowNull:        true,
	AllowDynamicType: true,
}

var anyArgs = &function.Parameter{
	Name:             "args",
	Type:             cty.DynamicPseudoType,
	AllowNull:        true,
	AllowUnknown:     true,
	AllowDynamicType: true,
	AllowMarked:      true,
}

func (rt *Runtime) functions() map[string]function.Function {
	w := rt.world
	num := func(v float64) cty.Value { return cty.NumberFloatVal(v) }

	adjacency := func(pred func(x, y int, id uint32) bool) function.Function {
		return function.New(&function.Spec{
			Params: coordID,
			Type:   function.StaticReturnType(cty.Bool),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				x, y, id, err := ints3(args)
				if err != nil {
					return cty.NilVal, err
				}
				if id < 0 {
					return cty.False, nil
				}
				return cty.BoolVal(pred(x, y, uint32(id))), nil
			},
		})
	}

	mover := func(name string, move func(x, y, i int, opts []cty.Value) (bool, error)) function.Function {
		return function.New(&function.Spec{
			Params:   coordIndex,
			VarParam: optional,
			Type:     function.StaticReturnType(cty.Bool),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				x, y, i, err := ints3(args)
				if err != nil {
					return cty.NilVal, err
				}
				moved, err := move(x, y, i, args[3:])
				if err != nil {
					return cty.NilVal, fmt.Errorf("%s: %w", name, err)
				}
				return cty.BoolVal(moved), nil
			},
		})
	}

	unary := func(f func(float64) float64) function.Function {
		return function.New(&function.Spec{
			Params: []function.Parameter{{Name: "n", Type: cty.Number}},
			Type:   function.StaticReturnType(cty.Number),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				v, err := toFloat(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				return num(f(v)), nil
			},
		})
	}

	fold := func(pick func(a, b float64) float64) function.Function {
		return function.New(&function.Spec{
			Params:   []function.Parameter{{Name: "first", Type: cty.Number}},
			VarParam: &function.Parameter{Name: "rest", Type: cty.Number},
			Type:     function.StaticReturnType(cty.Number),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				acc, err := toFloat(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				for _, a := range args[1:] {
					v, err := toFloat(a)
					if err != nil {
						return cty.NilVal, err
					}
					acc = pick(acc, v)
				}
				return num(acc), nil
			},
		})
	}

	noop := func(log bool) function.Function {
		return function.New(&function.Spec{
			VarParam: anyArgs,
			Type:     function.StaticReturnType(cty.DynamicPseudoType),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				if log && rt.logger.Enabled(context.Background(), slog.LevelDebug) {
					parts := make([]string, 0, len(args))
					for _, a := range args {
						parts = append(parts, render(a))
					}
					rt.logger.Debug("Fragment log.", "args", parts)
				}
				return cty.NullVal(cty.DynamicPseudoType), nil
			},
		})
	}

	return map[string]function.Function{
		"cell": function.New(&function.Spec{
			Params: []function.Parameter{{Name: "index", Type: cty.Number}},
			Type:   function.StaticReturnType(cty.Number),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				idx, err := toInt(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberUIntVal(uint64(w.At(idx))), nil
			},
		}),
		"doGravity": mover("doGravity", func(x, y, i int, opts []cty.Value) (bool, error) {
			fallAdjacent := false
			chance := 1.0
			if len(opts) > 0 {
				fallAdjacent = Truthy(opts[0])
			}
			if len(opts) > 1 {
				c, err := toFloat(opts[1])
				if err != nil {
					return false, err
				}
				chance = c
			}
			return w.Gravity(x, y, i, fallAdjacent, chance), nil
		}),
		"doDensityLiquid": mover("doDensityLiquid", func(x, y, i int, opts []cty.Value) (bool, error) {
			chance, err := chanceOpt(opts)
			if err != nil {
				return false, err
			}
			return w.DensityFlow(x, y, i, chance), nil
		}),
		"doRise": mover("doRise", func(x, y, i int, opts []cty.Value) (bool, error) {
			chance, err := chanceOpt(opts)
			if err != nil {
				return false, err
			}
			return w.Rise(x, y, i, chance), nil
		}),
		"horizontallyAdjacent": adjacency(w.HorizontallyAdjacent),
		"belowAdjacent":        adjacency(w.BelowAdjacent),
		"aboveAdjacent":        adjacency(w.AboveAdjacent),
		"random": function.New(&function.Spec{
			Type: function.StaticReturnType(cty.Number),
			Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
				return num(w.Random()), nil
			},
		}),
		"randInt": function.New(&function.Spec{
			Params: []function.Parameter{{Name: "n", Type: cty.Number}},
			Type:   function.StaticReturnType(cty.Number),
			Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
				n, err := toInt(args[0])
				if err != nil {
					return cty.NilVal, err
				}
				return cty.NumberIntVal(int64(w.IntN(n))), nil
			},
		}),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"round": unary(func(v float64) float64 { return math.Floor(v + 0.5) }),
		"abs":   unary(math.Abs),
		"min":   fold(math.Min),
		"max":   fold(math.Max),
		"log":   noop(true),
		"inert": noop(false),
	}
}

func chanceOpt(opts []cty.Value) (float64, error) {
	if len(opts) == 0 {
		return 1, nil
	}
	return toFloat(opts[0])
}

func toFloat(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("number required, got null")
	}
	if !v.Type().Equals(cty.Number) {
		return 0, fmt.Errorf("number required, got %s", v.Type().FriendlyName())
	}
	f, _ := v.AsBigFloat().Float64()
	if math.IsNaN(f) {
		return 0, fmt.Errorf("number required, got NaN")
	}
	return f, nil
}

func toInt(v cty.Value) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("integer out of range: %v", f)
	}
	return int(f), nil
}

func ints3(args []cty.Value) (int, int, int, error) {
	var out [3]int
	for k := range out {
		v, err := toInt(args[k])
		if err != nil {
			return 0, 0, 0, err
		}
		out[k] = v
	}
	return out[0], out[1], out[2], nil
}

// Truthy applies JavaScript-like truthiness: false, 0, null and the empty
// string are false; everything else is true.
func Truthy(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() {
		return false
	}
	t := v.Type()
	switch {
	case t.Equals(cty.Bool):
		return v.True()
	case t.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return f != 0 && !math.IsNaN(f)
	case t.Equals(cty.String):
		return v.AsString() != ""
	}
	return true
}

func render(v cty.Value) string {
	switch {
	case v.IsNull():
		return "null"
	case !v.IsKnown():
		return "unknown"
	case v.Type().Equals(cty.String):
		return v.AsString()
	case v.Type().Equals(cty.Number):
		return v.AsBigFloat().Text('g', -1)
	case v.Type().Equals(cty.Bool):
		return fmt.Sprint(v.True())
	}
	return v.Type().FriendlyName()
}
