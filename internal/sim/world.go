// Package sim is the particle sandbox the pipeline plugs into: a row-major
// grid of element ids, the built-in elements, the movement and contact
// primitives generated fragments may call, and the tick loop.
package sim

import (
	"math/rand/v2"
)

// Size describes the dimensions of the grid.
type Size struct {
	W int
	H int
}

// World stores the cell buffer and per-tick bookkeeping.
type World struct {
	w, h int

	cells []uint32
	// stamp records the tick in which a cell last received a moved particle,
	// so a particle is never processed twice in one tick.
	stamp []uint32
	tick  uint32

	rng *rand.Rand
}

// New returns an empty world of the given size.
func New(w, h int, seed int64) *World {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return &World{
		w:     w,
		h:     h,
		cells: make([]uint32, w*h),
		stamp: make([]uint32, w*h),
		rng:   rand.New(rand.NewPCG(uint64(seed), 0)),
	}
}

// Name returns the simulation identifier.
func (w *World) Name() string { return "sandbox" }

// Size reports the grid dimensions.
func (w *World) Size() Size { return Size{W: w.w, H: w.h} }

// Width returns the row width.
func (w *World) Width() int { return w.w }

// Height returns the number of rows.
func (w *World) Height() int { return w.h }

// Cells exposes the backing slice so callers can read/write values directly.
func (w *World) Cells() []uint32 { return w.cells }

// Tick returns the number of completed ticks.
func (w *World) Tick() uint32 { return w.tick }

// Reset clears the grid and reseeds the random source.
func (w *World) Reset(seed int64) {
	w.rng = rand.New(rand.NewPCG(uint64(seed), 0))
	for i := range w.cells {
		w.cells[i] = Background
		w.stamp[i] = 0
	}
	w.tick = 0
}

// Index returns the linear slice index for coordinates (x, y).
func (w *World) Index(x, y int) int { return y*w.w + x }

// InBounds reports whether (x, y) lies on the grid.
func (w *World) InBounds(x, y int) bool {
	return x >= 0 && x < w.w && y >= 0 && y < w.h
}

// Get returns the id at (x, y), or Wall outside the grid so that edges behave
// like solid boundaries.
func (w *World) Get(x, y int) uint32 {
	if !w.InBounds(x, y) {
		return Wall
	}
	return w.cells[y*w.w+x]
}

// At returns the id at linear index i, or Wall when i is out of range.
func (w *World) At(i int) uint32 {
	if i < 0 || i >= len(w.cells) {
		return Wall
	}
	return w.cells[i]
}

// Set writes id at (x, y). Writes outside the grid are ignored.
func (w *World) Set(x, y int, id uint32) {
	if !w.InBounds(x, y) {
		return
	}
	w.SetIndex(y*w.w+x, id)
}

// SetIndex writes id at linear index i and reports whether i was in range.
func (w *World) SetIndex(i int, id uint32) bool {
	if i < 0 || i >= len(w.cells) {
		return false
	}
	w.cells[i] = id
	w.stamp[i] = w.tick + 1
	return true
}

// Random returns a float in [0,1) from the world's deterministic source.
func (w *World) Random() float64 { return w.rng.Float64() }

// IntN returns an int in [0,n) from the world's deterministic source.
func (w *World) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	return w.rng.IntN(n)
}

// Paint fills a disc of the given radius with id.
func (w *World) Paint(cx, cy, radius int, id uint32) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			w.Set(cx+dx, cy+dy, id)
		}
	}
}

// Counts returns how many cells hold each id.
func (w *World) Counts() map[uint32]int {
	counts := make(map[uint32]int)
	for _, id := range w.cells {
		counts[id]++
	}
	return counts
}

func (w *World) swap(a, b int) {
	w.cells[a], w.cells[b] = w.cells[b], w.cells[a]
	w.stamp[a] = w.tick + 1
	w.stamp[b] = w.tick + 1
}

func (w *World) movedThisTick(i int) bool {
	return w.stamp[i] == w.tick+1
}

// Swap exchanges the contents of two cells. Out-of-range indices are ignored.
func (w *World) Swap(a, b int) {
	if a < 0 || b < 0 || a >= len(w.cells) || b >= len(w.cells) {
		return
	}
	w.swap(a, b)
}

// Clear fills every cell with Background without touching the tick counter.
func (w *World) Clear() {
	for i := range w.cells {
		w.cells[i] = Background
	}
}
