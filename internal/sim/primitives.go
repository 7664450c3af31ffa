package sim

// Gravity moves the particle at (x, y) one cell down when the cell below can
// be displaced. With fallAdjacent it also tries the two lower diagonals. The
// move is attempted with the given probability; chance <= 0 means always.
func (w *World) Gravity(x, y, i int, fallAdjacent bool, chance float64) bool {
	if !w.roll(chance) || !w.InBounds(x, y) {
		return false
	}
	i = w.Index(x, y)
	if w.InBounds(x, y+1) && displaceable(w.cells[i+w.w]) {
		w.swap(i, i+w.w)
		return true
	}
	if !fallAdjacent {
		return false
	}
	dir := w.direction()
	for _, dx := range [2]int{dir, -dir} {
		nx, ny := x+dx, y+1
		if w.InBounds(nx, ny) && displaceable(w.cells[w.Index(nx, ny)]) {
			w.swap(i, w.Index(nx, ny))
			return true
		}
	}
	return false
}

// DensityFlow moves a liquid down, then diagonally down, then sideways.
func (w *World) DensityFlow(x, y, i int, chance float64) bool {
	if !w.roll(chance) || !w.InBounds(x, y) {
		return false
	}
	i = w.Index(x, y)
	if w.InBounds(x, y+1) && fluidDisplaceable(w.cells[i+w.w]) {
		w.swap(i, i+w.w)
		return true
	}
	dir := w.direction()
	for _, dx := range [2]int{dir, -dir} {
		nx, ny := x+dx, y+1
		if w.InBounds(nx, ny) && fluidDisplaceable(w.cells[w.Index(nx, ny)]) {
			w.swap(i, w.Index(nx, ny))
			return true
		}
	}
	for _, dx := range [2]int{dir, -dir} {
		nx := x + dx
		if w.InBounds(nx, y) && w.cells[w.Index(nx, y)] == Background {
			w.swap(i, w.Index(nx, y))
			return true
		}
	}
	return false
}

// Rise moves a gas up, then diagonally up, then sideways.
func (w *World) Rise(x, y, i int, chance float64) bool {
	if !w.roll(chance) || !w.InBounds(x, y) {
		return false
	}
	i = w.Index(x, y)
	if w.InBounds(x, y-1) && w.cells[i-w.w] == Background {
		w.swap(i, i-w.w)
		return true
	}
	dir := w.direction()
	for _, dx := range [2]int{dir, -dir} {
		nx, ny := x+dx, y-1
		if w.InBounds(nx, ny) && w.cells[w.Index(nx, ny)] == Background {
			w.swap(i, w.Index(nx, ny))
			return true
		}
	}
	nx := x + dir
	if w.InBounds(nx, y) && w.cells[w.Index(nx, y)] == Background {
		w.swap(i, w.Index(nx, y))
		return true
	}
	return false
}

// HorizontallyAdjacent reports whether the left or right neighbor holds id.
func (w *World) HorizontallyAdjacent(x, y int, id uint32) bool {
	return w.neighborIs(x-1, y, id) || w.neighborIs(x+1, y, id)
}

// BelowAdjacent reports whether the cell below holds id.
func (w *World) BelowAdjacent(x, y int, id uint32) bool {
	return w.neighborIs(x, y+1, id)
}

// AboveAdjacent reports whether the cell above holds id.
func (w *World) AboveAdjacent(x, y int, id uint32) bool {
	return w.neighborIs(x, y-1, id)
}

func (w *World) touching(x, y int, id uint32) bool {
	return w.HorizontallyAdjacent(x, y, id) || w.BelowAdjacent(x, y, id) || w.AboveAdjacent(x, y, id)
}

func (w *World) neighborIs(x, y int, id uint32) bool {
	return w.InBounds(x, y) && w.cells[y*w.w+x] == id
}

// roll reports whether an event with the given probability happens. A chance
// of 0 or less never happens; 1 or more always does.
func (w *World) roll(chance float64) bool {
	switch {
	case chance <= 0:
		return false
	case chance >= 1:
		return true
	}
	return w.rng.Float64() < chance
}

func (w *World) direction() int {
	if w.rng.IntN(2) == 0 {
		return -1
	}
	return 1
}
