package sim

import "github.com/specialistvlad/sandforge/internal/particle"

// ActionTable resolves the per-cell callable for a custom element id.
type ActionTable interface {
	Action(id uint32) (func(x, y, i int), bool)
}

// Step advances the world by one tick. Rows are processed bottom-up and the
// horizontal direction alternates every tick so flows do not drift to one
// side. A cell that received a moved particle this tick is skipped.
func (w *World) Step(table ActionTable) {
	leftToRight := w.tick%2 == 0
	for y := w.h - 1; y >= 0; y-- {
		for k := 0; k < w.w; k++ {
			x := k
			if !leftToRight {
				x = w.w - 1 - k
			}
			i := y*w.w + x
			if w.movedThisTick(i) {
				continue
			}
			id := w.cells[i]
			switch {
			case id == Background:
			case IsBuiltin(id):
				w.stepBuiltin(id, x, y, i)
			case table != nil:
				if fn, ok := table.Action(id); ok && fn != nil {
					fn(x, y, i)
				}
			}
		}
	}
	w.tick++
}

func (w *World) stepBuiltin(id uint32, x, y, i int) {
	switch id {
	case Sand, Salt:
		w.Gravity(x, y, i, true, 1)
	case Water:
		if w.touching(x, y, Lava) {
			w.SetIndex(i, Steam)
			return
		}
		w.DensityFlow(x, y, i, 1)
	case Oil:
		if w.touching(x, y, Fire) || w.touching(x, y, Lava) {
			w.SetIndex(i, Fire)
			return
		}
		w.DensityFlow(x, y, i, 0.8)
	case Plant:
		if w.touching(x, y, Fire) && w.Random() < 0.3 {
			w.SetIndex(i, Fire)
		}
	case Ice:
		if (w.touching(x, y, Fire) || w.touching(x, y, Lava)) && w.Random() < 0.2 {
			w.SetIndex(i, Water)
		}
	case Fire:
		w.spreadFire(x, y)
		if w.Random() < 0.1 {
			w.SetIndex(i, Background)
			return
		}
		w.Rise(x, y, i, 0.5)
	case Lava:
		if w.touching(x, y, Water) {
			w.SetIndex(i, Rock)
			return
		}
		w.spreadFire(x, y)
		w.DensityFlow(x, y, i, 0.3)
	case Steam:
		if w.Random() < 0.01 {
			w.SetIndex(i, Water)
			return
		}
		w.Rise(x, y, i, 0.9)
	}
}

// spreadFire ignites flammable orthogonal neighbors.
func (w *World) spreadFire(x, y int) {
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		nx, ny := x+d[0], y+d[1]
		if !w.InBounds(nx, ny) {
			continue
		}
		j := w.Index(nx, ny)
		if flammable(w.cells[j]) && w.Random() < 0.5 {
			w.SetIndex(j, Fire)
		}
	}
}

// ColorSource resolves the color of a custom element id.
type ColorSource interface {
	Color(id uint32) (particle.Color, bool)
}

// Palette renders the grid into one color per cell. Unknown custom ids are
// drawn magenta so they stand out.
func (w *World) Palette(colors ColorSource) []particle.Color {
	out := make([]particle.Color, len(w.cells))
	for i, id := range w.cells {
		if el, ok := Lookup(id); ok {
			out[i] = el.Color
			continue
		}
		if colors != nil {
			if c, ok := colors.Color(id); ok {
				out[i] = c
				continue
			}
		}
		out[i] = particle.Color{255, 0, 255}
	}
	return out
}
