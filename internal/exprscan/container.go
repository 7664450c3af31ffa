// Package exprscan collects compiled fragment expressions and reports which
// functions they call and which variables they read.
package exprscan

import (
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// Container gathers expressions and caches the analysis of them.
type Container struct {
	mu       sync.RWMutex
	analyzed bool

	expressions []hcl.Expression

	references      []hcl.Traversal
	calledFunctions []string
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{}
}

// Add appends expressions; nil expressions are ignored.
func (c *Container) Add(exprs ...hcl.Expression) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, expr := range exprs {
		if expr != nil {
			c.expressions = append(c.expressions, expr)
			c.analyzed = false
		}
	}
}

// Len returns the number of collected expressions.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.expressions)
}

func (c *Container) analyze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.analyzed {
		return
	}
	c.references, c.calledFunctions = extract(c.expressions...)
	c.analyzed = true
}

// References returns every unique variable traversal, sorted by key.
func (c *Container) References() []hcl.Traversal {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.references
}

// CalledFunctions returns every unique called function name, sorted.
func (c *Container) CalledFunctions() []string {
	c.analyze()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calledFunctions
}

// Unknown reports the called functions missing from funcs and the root
// variable names missing from vars. Both results are sorted.
func (c *Container) Unknown(funcs map[string]struct{}, vars map[string]struct{}) (unknownFuncs, unknownVars []string) {
	for _, name := range c.CalledFunctions() {
		if _, ok := funcs[name]; !ok {
			unknownFuncs = append(unknownFuncs, name)
		}
	}
	seen := make(map[string]struct{})
	for _, tr := range c.References() {
		root := tr.RootName()
		if _, ok := vars[root]; ok {
			continue
		}
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = struct{}{}
		unknownVars = append(unknownVars, root)
	}
	sort.Strings(unknownVars)
	return unknownFuncs, unknownVars
}

// TraversalKey renders a traversal canonically, e.g. inert.alert or grid[0].
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

func extract(exprs ...hcl.Expression) ([]hcl.Traversal, []string) {
	traversals := make(map[string]hcl.Traversal)
	functions := make(map[string]struct{})

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, tr := range expr.Variables() {
			traversals[TraversalKey(tr)] = tr
		}
		if syn, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syn, functions)
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	refs := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, traversals[k])
	}

	funcs := make([]string, 0, len(functions))
	for f := range functions {
		funcs = append(funcs, f)
	}
	sort.Strings(funcs)
	return refs, funcs
}

// walkForFunctions records every function call in the tree. Fragments never
// produce templates or for expressions, but the walk covers them anyway so a
// rules template cannot hide a call.
func walkForFunctions(expr hclsyntax.Expression, functions map[string]struct{}) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		functions[e.Name] = struct{}{}
		for _, arg := range e.Args {
			walkForFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, functions)
		walkForFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, functions)
		walkForFunctions(e.TrueResult, functions)
		walkForFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, functions)
			walkForFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, functions)
		walkForFunctions(e.KeyExpr, functions)
		walkForFunctions(e.ValExpr, functions)
		walkForFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, functions)
		walkForFunctions(e.Key, functions)
	case *hclsyntax.RelativeTraversalExpr:
		walkForFunctions(e.Source, functions)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, functions)
		walkForFunctions(e.Each, functions)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, functions)
	}
}
