package registry

import (
	"github.com/specialistvlad/sandforge/internal/action"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// Table is an immutable snapshot of the per-id actions and colors. Lookups
// are a bounds check and a slice index.
type Table struct {
	offset  uint32
	actions []action.Func
	colors  []particle.Color
}

func newTable(offset uint32, entries []Entry) *Table {
	t := &Table{
		offset:  offset,
		actions: make([]action.Func, len(entries)),
		colors:  make([]particle.Color, len(entries)),
	}
	for k, e := range entries {
		t.actions[k] = e.Action
		t.colors[k] = e.Color
	}
	return t
}

func (t *Table) index(id uint32) (int, bool) {
	if t == nil || id < t.offset {
		return 0, false
	}
	k := int(id - t.offset)
	return k, k < len(t.actions)
}

// Action returns the callable for id.
func (t *Table) Action(id uint32) (func(x, y, i int), bool) {
	k, ok := t.index(id)
	if !ok {
		return nil, false
	}
	return t.actions[k], true
}

// Color returns the registered color for id.
func (t *Table) Color(id uint32) (particle.Color, bool) {
	k, ok := t.index(id)
	if !ok {
		return particle.Color{}, false
	}
	return t.colors[k], true
}

// IDs returns the registered ids in order.
func (t *Table) IDs() []uint32 {
	if t == nil {
		return nil
	}
	out := make([]uint32, len(t.actions))
	for k := range out {
		out[k] = t.offset + uint32(k)
	}
	return out
}

// Len returns the number of ids in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.actions)
}
