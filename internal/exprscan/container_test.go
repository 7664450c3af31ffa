package exprscan_test

import (
	"sync"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/exprscan"
)

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "fragment", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "expression parsing failed: %s", diags.Error())
	return expr
}

func TestContainer_AddAndExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(
		parseExpr(t, `belowAdjacent(x, y, FIRE)`),
		parseExpr(t, `cell(i + width) == WATER`),
		parseExpr(t, `inert.alert`),
		parseExpr(t, `random() < 0.5 && belowAdjacent(x, y, FIRE)`),
	)

	require.Equal(t, []string{"belowAdjacent", "cell", "random"}, c.CalledFunctions())

	var keys []string
	for _, ref := range c.References() {
		keys = append(keys, exprscan.TraversalKey(ref))
	}
	require.Equal(t, []string{"FIRE", "WATER", "i", "inert.alert", "width", "x", "y"}, keys)
}

func TestContainer_Unknown(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(parseExpr(t, `explode(x, y) || isTouching(x, y, i, MUD) || MUD == GOLD`))

	funcs := map[string]struct{}{"cell": {}}
	vars := map[string]struct{}{"x": {}, "y": {}, "i": {}}

	unknownFuncs, unknownVars := c.Unknown(funcs, vars)

	require.Equal(t, []string{"explode", "isTouching"}, unknownFuncs)
	require.Equal(t, []string{"GOLD", "MUD"}, unknownVars)
}

func TestContainer_AddAfterExtract(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(parseExpr(t, `x`))
	require.Len(t, c.References(), 1)

	c.Add(parseExpr(t, `y`), parseExpr(t, `doRise(x, y, i)`))

	require.Equal(t, []string{"doRise"}, c.CalledFunctions())
	require.Len(t, c.References(), 3)
	require.Equal(t, 3, c.Len())
}

func TestContainer_ConcurrentAccess(t *testing.T) {
	c := exprscan.NewContainer()
	c.Add(parseExpr(t, `a`), parseExpr(t, `b`), parseExpr(t, `f()`))

	var wg sync.WaitGroup
	wg.Add(50)
	for i := range 50 {
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				require.Len(t, c.References(), 2)
			} else {
				require.Len(t, c.CalledFunctions(), 1)
			}
		}()
	}
	wg.Wait()
}

func TestContainer_EdgeCases(t *testing.T) {
	c := exprscan.NewContainer()
	require.Empty(t, c.References())
	require.Empty(t, c.CalledFunctions())

	c.Add(nil, parseExpr(t, `x`), nil)
	require.Equal(t, 1, c.Len())
}
