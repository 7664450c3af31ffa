package sim

import (
	"sort"

	"github.com/specialistvlad/sandforge/internal/particle"
)

// Built-in element ids. Custom particles are allocated above CustomIDOffset.
const (
	Background uint32 = iota
	Sand
	Water
	Wall
	Plant
	Fire
	Lava
	Steam
	Oil
	Ice
	Salt
	Rock

	builtinCount
)

// CustomIDOffset is the first id handed out to generated particles. The gap
// above the built-ins leaves room for new built-ins without renumbering.
const CustomIDOffset uint32 = 1000

// Element describes a built-in particle type.
type Element struct {
	ID    uint32
	Name  string
	Color particle.Color
}

var builtins = [...]Element{
	{ID: Background, Name: "BACKGROUND", Color: particle.Color{0, 0, 0}},
	{ID: Sand, Name: "SAND", Color: particle.Color{223, 193, 99}},
	{ID: Water, Name: "WATER", Color: particle.Color{0, 10, 255}},
	{ID: Wall, Name: "WALL", Color: particle.Color{127, 127, 127}},
	{ID: Plant, Name: "PLANT", Color: particle.Color{0, 220, 0}},
	{ID: Fire, Name: "FIRE", Color: particle.Color{255, 0, 10}},
	{ID: Lava, Name: "LAVA", Color: particle.Color{255, 90, 20}},
	{ID: Steam, Name: "STEAM", Color: particle.Color{200, 200, 230}},
	{ID: Oil, Name: "OIL", Color: particle.Color{150, 60, 80}},
	{ID: Ice, Name: "ICE", Color: particle.Color{170, 230, 255}},
	{ID: Salt, Name: "SALT", Color: particle.Color{253, 253, 253}},
	{ID: Rock, Name: "ROCK", Color: particle.Color{68, 40, 8}},
}

// Builtins returns the built-in elements in id order.
func Builtins() []Element {
	out := make([]Element, len(builtins))
	copy(out, builtins[:])
	return out
}

// BuiltinIDs maps every built-in name to its id. EMPTY is accepted as an
// alias for BACKGROUND because generated fragments use both.
func BuiltinIDs() map[string]uint32 {
	ids := make(map[string]uint32, len(builtins)+1)
	for _, el := range builtins {
		ids[el.Name] = el.ID
	}
	ids["EMPTY"] = Background
	return ids
}

// BuiltinNames returns the built-in names sorted alphabetically.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for _, el := range builtins {
		names = append(names, el.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the built-in element with the given id.
func Lookup(id uint32) (Element, bool) {
	if id >= builtinCount {
		return Element{}, false
	}
	return builtins[id], true
}

// IsBuiltin reports whether id belongs to a built-in element.
func IsBuiltin(id uint32) bool { return id < builtinCount }

// displaceable reports whether a falling solid may swap into a cell holding id.
func displaceable(id uint32) bool {
	switch id {
	case Background, Water, Oil, Steam, Fire:
		return true
	}
	return false
}

// fluidDisplaceable reports whether a flowing liquid may swap into id.
func fluidDisplaceable(id uint32) bool {
	switch id {
	case Background, Steam, Fire:
		return true
	}
	return false
}

func flammable(id uint32) bool {
	switch id {
	case Plant, Oil:
		return true
	}
	return false
}
