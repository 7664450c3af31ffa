package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/rules"
	"github.com/specialistvlad/sandforge/internal/sim"
)

func newRewriter() *Rewriter {
	return New(rules.Default(), sim.BuiltinIDs())
}

func TestTrivialFragments(t *testing.T) {
	rw := newRewriter()
	r := rules.Default()

	t.Run("cloud gets the gas template", func(t *testing.T) {
		out, applied := rw.Explain("doGravity(x, y, i);", "CLOUD", 1000)

		gas, _ := r.TrivialTemplate("CLOUD")
		assert.Equal(t, gas, out)
		assert.Equal(t, []string{"template:gas"}, applied)
		assert.Contains(t, out, "doRise(")
	})

	t.Run("short fragment without a category gets the default template", func(t *testing.T) {
		out, applied := rw.Explain("doRise(x,y,i);", "PEBBLE", 1000)

		require.Contains(t, applied, "template:default")
		assert.Contains(t, out, "horizontallyAdjacent(x, y, FIRE)")
		assert.NotContains(t, out, "isTouching")
	})

	t.Run("floating variant resolves SELF", func(t *testing.T) {
		out := rw.Rewrite("", "BUBBLE_MILK", 1004)
		assert.Contains(t, out, "grid[i - width] = 1004;")
		assert.NotContains(t, out, SelfPlaceholder)
	})

	names := []string{"CLOUD", "HORSE_HAIR", "ACID", "CRUDE_OIL", "BUBBLE_MILK", "PEBBLE", "TNT", "EMBER", ""}
	for _, name := range names {
		t.Run("branching and deterministic "+name, func(t *testing.T) {
			first := rw.Rewrite("x;", name, 1001)
			second := rw.Rewrite("x;", name, 1001)
			assert.NotEmpty(t, strings.TrimSpace(first))
			assert.Contains(t, first, "if (")
			assert.Equal(t, first, second)
		})
	}
}

func TestTNTPassesUnchanged(t *testing.T) {
	rw := newRewriter()
	frag := `if (horizontallyAdjacent(x, y, FIRE) || belowAdjacent(x, y, FIRE)) { grid[i] = FIRE; grid[i + 1] = FIRE; } else { doGravity(x, y, i, true, 1); }`

	out, applied := rw.Explain(frag, "TNT", 1000)

	assert.Equal(t, frag, out)
	assert.Empty(t, applied)
}

func TestSelfReference(t *testing.T) {
	rw := newRewriter()

	t.Run("own name and SELF become the id", func(t *testing.T) {
		frag := `if (belowAdjacent(x, y, WATER)) { grid[i] = SLIME; grid[i + width] = SELF; } else { doDensityLiquid(x, y, i); }`
		out := rw.Rewrite(frag, "SLIME", 1001)
		assert.Equal(t, `if (belowAdjacent(x, y, WATER)) { grid[i] = 1001; grid[i + width] = 1001; } else { doDensityLiquid(x, y, i); }`, out)
	})

	t.Run("name inside a longer identifier is kept", func(t *testing.T) {
		frag := `let SLIME_COUNT = 1; if (belowAdjacent(x, y, SLIME)) { doGravity(x, y, i); }`
		out := rw.Rewrite(frag, "SLIME", 7)
		assert.Equal(t, `let SLIME_COUNT = 1; if (belowAdjacent(x, y, 7)) { doGravity(x, y, i); }`, out)
	})

	t.Run("built-in names are not replaced", func(t *testing.T) {
		frag := `if (belowAdjacent(x, y, SAND)) { grid[i] = WATER; } else { doGravity(x, y, i, true); }`
		assert.Equal(t, frag, rw.Rewrite(frag, "SAND", 1002))
	})
}

func TestTouchingExpansion(t *testing.T) {
	rw := newRewriter()

	out := rw.Rewrite(`if (isTouching(x, y, i, FIRE)) { grid[i] = BACKGROUND; } else { doGravity(x, y, i); }`, "PEBBLE", 1000)
	assert.Equal(t,
		`if ((horizontallyAdjacent(x, y, FIRE) || belowAdjacent(x, y, FIRE) || aboveAdjacent(x, y, FIRE))) { grid[i] = BACKGROUND; } else { doGravity(x, y, i); }`,
		out)

	other := `if (isTouching(x, y, i, WATER)) { grid[i] = BACKGROUND; } else { doGravity(x, y, i); }`
	assert.Equal(t, other, rw.Rewrite(other, "PEBBLE", 1000), "only fire contact is expanded")
}

func TestNeighborWrites(t *testing.T) {
	rw := newRewriter()
	frag := `let ash = SAND; if (belowAdjacent(x, y, WATER)) { grid[i + 1] = MUD; grid[i - 1] = WATER; grid[i + width] = ash; grid[i - width] = BACKGROUND; grid[i] = GOLD; }`

	out, applied := rw.Explain(frag, "PEBBLE", 1000)

	assert.Contains(t, out, "grid[i + 1] = FIRE;")
	assert.Contains(t, out, "grid[i - 1] = WATER;")
	assert.Contains(t, out, "grid[i + width] = ash;")
	assert.Contains(t, out, "grid[i - width] = BACKGROUND;")
	assert.Contains(t, out, "grid[i] = GOLD;", "own cell is not a neighbor")
	assert.Equal(t, []string{"neighbor-write:MUD->FIRE"}, applied)
}

func TestExplosiveInjection(t *testing.T) {
	rw := newRewriter()
	frag := `if (belowAdjacent(x, y, WATER)) { grid[i] = SAND; } else { doGravity(x, y, i, true, 1); }`

	out, applied := rw.Explain(frag, "BOMB", 1003)

	assert.Contains(t, applied, "explosion")
	assert.Contains(t, out, frag)
	assert.Contains(t, out, "grid[i - 1] = FIRE;")
	assert.Contains(t, out, "grid[i + width] = FIRE;")
	assert.Contains(t, out, "horizontallyAdjacent(x, y, FIRE)")
	assert.NotContains(t, out, rules.BodyPlaceholder)
	assert.NotContains(t, out, "isTouching")

	assert.Equal(t, frag, rw.Rewrite(frag, "PEBBLE", 1003), "non-explosive names are not wrapped")
}

func TestExplosiveInjectionIgnoresFireWrites(t *testing.T) {
	rw := newRewriter()
	frag := `if (random() < 0.05) { grid[i + 1] = SPARK; } else { doGravity(x, y, i, true, 1); }`

	out, applied := rw.Explain(frag, "TNT", 1000)

	assert.Equal(t, []string{"neighbor-write:SPARK->FIRE", "explosion"}, applied)
	assert.Contains(t, out, "grid[i + 1] = FIRE;")
	assert.Contains(t, out, "horizontallyAdjacent(x, y, FIRE)")
}

func TestExplosiveWithFireCheckIsNotWrapped(t *testing.T) {
	rw := newRewriter()
	cases := map[string]string{
		"adjacency":  `if (belowAdjacent(x, y, FIRE)) { grid[i] = FIRE; } else { doGravity(x, y, i, true, 1); }`,
		"comparison": `if (grid[i + width] == FIRE) { grid[i] = FIRE; } else { doGravity(x, y, i, true, 1); }`,
	}
	for name, frag := range cases {
		t.Run(name, func(t *testing.T) {
			_, applied := rw.Explain(frag, "DYNAMITE", 1004)
			assert.NotContains(t, applied, "explosion")
		})
	}
}
