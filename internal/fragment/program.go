// Package fragment compiles a rewritten particle fragment into a program for
// a small closed language and executes it against a world.
//
// Statements follow the JavaScript shape the generator is prompted with:
// blocks, if/else, let/const/var declarations, grid stores, assignments,
// return, and expression statements. Loops and function definitions do not
// exist. Expressions are translated to HCL syntax and evaluated with a fixed
// table of primitives, so a fragment can only do what those primitives
// allow. Every execution is also bounded by a step budget.
package fragment

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/sandforge/internal/exprscan"
)

// DefaultStepBudget bounds statements plus writes per execution.
const DefaultStepBudget = 256

var (
	// ErrBudgetExceeded is returned when an execution runs out of steps.
	ErrBudgetExceeded = errors.New("step budget exceeded")

	errReturn = errors.New("return")
)

// Program is a compiled fragment. It is immutable and safe to execute from
// one goroutine at a time per runtime.
type Program struct {
	source string
	body   []stmt
	budget int
	locals map[string]struct{}
	scan   *exprscan.Container
}

// Compile parses src. A non-positive budget selects DefaultStepBudget.
func Compile(src string, budget int) (*Program, error) {
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	p, body, err := parse(src)
	if err != nil {
		return nil, err
	}
	scan := exprscan.NewContainer()
	scan.Add(p.exprs...)
	return &Program{
		source: src,
		body:   body,
		budget: budget,
		locals: p.decls,
		scan:   scan,
	}, nil
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.source }

// Calls returns the sorted names of every function the program calls.
func (p *Program) Calls() []string { return p.scan.CalledFunctions() }

// Exec runs the program for the cell at (x, y) with linear index i.
func (p *Program) Exec(rt *Runtime, x, y, i int) error {
	ctx := rt.base.NewChild()
	ctx.Variables = map[string]cty.Value{
		"x": cty.NumberIntVal(int64(x)),
		"y": cty.NumberIntVal(int64(y)),
		"i": cty.NumberIntVal(int64(i)),
	}
	e := &executor{rt: rt, ctx: ctx, budget: p.budget}
	err := e.run(p.body)
	if errors.Is(err, errReturn) {
		return nil
	}
	return err
}

type executor struct {
	rt     *Runtime
	ctx    *hcl.EvalContext
	steps  int
	budget int
}

func (e *executor) step() error {
	e.steps++
	if e.steps > e.budget {
		return ErrBudgetExceeded
	}
	return nil
}

func (e *executor) run(body []stmt) error {
	for _, s := range body {
		if err := e.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) exec(s stmt) error {
	if s == nil {
		return nil
	}
	if err := e.step(); err != nil {
		return err
	}
	switch s := s.(type) {
	case blockStmt:
		return e.run(s.body)
	case ifStmt:
		cond, err := e.eval(s.cond)
		if err != nil {
			return err
		}
		if Truthy(cond) {
			return e.exec(s.then)
		}
		return e.exec(s.els)
	case declStmt:
		v := cty.NullVal(cty.DynamicPseudoType)
		if s.value != nil {
			var err error
			if v, err = e.eval(s.value); err != nil {
				return err
			}
		}
		e.ctx.Variables[s.name] = v
		return nil
	case assignStmt:
		return e.assign(s)
	case storeStmt:
		return e.store(s)
	case returnStmt:
		if s.value != nil {
			if _, err := e.eval(s.value); err != nil {
				return err
			}
		}
		return errReturn
	case exprStmt:
		_, err := e.eval(s.expr)
		return err
	}
	return fmt.Errorf("unsupported statement %T", s)
}

func (e *executor) eval(expr hcl.Expression) (cty.Value, error) {
	v, diags := expr.Value(e.ctx)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

func (e *executor) assign(s assignStmt) error {
	cur, ok := e.ctx.Variables[s.name]
	if !ok {
		return fmt.Errorf("assignment to undeclared variable %s", s.name)
	}
	v, err := e.eval(s.value)
	if err != nil {
		return err
	}
	if s.op != "=" {
		a, err := toFloat(cur)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.name, s.op, err)
		}
		b, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.name, s.op, err)
		}
		if s.op == "-=" {
			b = -b
		}
		v = cty.NumberFloatVal(a + b)
	}
	e.ctx.Variables[s.name] = v
	return nil
}

func (e *executor) store(s storeStmt) error {
	if err := e.step(); err != nil {
		return err
	}
	idxVal, err := e.eval(s.index)
	if err != nil {
		return err
	}
	idx, err := toInt(idxVal)
	if err != nil {
		return fmt.Errorf("grid index: %w", err)
	}
	val, err := e.eval(s.value)
	if err != nil {
		return err
	}
	f, err := toFloat(val)
	if err != nil {
		return fmt.Errorf("grid value: %w", err)
	}
	if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return fmt.Errorf("grid value %v is not an element id", f)
	}
	// Out-of-range writes are dropped, like writes past the end of a typed
	// array.
	e.rt.world.SetIndex(idx, uint32(f))
	return nil
}
