package generator

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/specialistvlad/sandforge/internal/particle"
)

// wireDescription is the JSON shape the generator answers with.
type wireDescription struct {
	Name         string          `json:"name"`
	Color        json.RawMessage `json:"color"`
	Behavior     string          `json:"behavior"`
	Interactions string          `json:"interactions"`
	ActionCode   string          `json:"action_code"`
}

// Decode parses a generator response. Failures are reported as
// *particle.GenerationError with Op "decode".
func Decode(data []byte) (particle.Description, error) {
	var w wireDescription
	if err := json.Unmarshal(data, &w); err != nil {
		return particle.Description{}, &particle.GenerationError{Op: "decode", Err: err}
	}
	return w.description()
}

// DecodeValue converts an already decoded payload, such as a socket.io event
// argument, by round-tripping it through JSON.
func DecodeValue(v any) (particle.Description, error) {
	if v == nil {
		return particle.Description{}, &particle.GenerationError{Op: "decode", Err: fmt.Errorf("empty payload")}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return particle.Description{}, &particle.GenerationError{Op: "decode", Err: err}
	}
	return Decode(data)
}

func (w wireDescription) description() (particle.Description, error) {
	color, err := decodeColor(w.Color)
	if err != nil {
		return particle.Description{}, &particle.GenerationError{Name: w.Name, Op: "decode", Err: err}
	}
	d := particle.Description{
		Name:         w.Name,
		Color:        color,
		Behavior:     w.Behavior,
		Interactions: w.Interactions,
		ActionCode:   w.ActionCode,
	}
	if err := d.Check(); err != nil {
		return particle.Description{}, &particle.GenerationError{Name: w.Name, Op: "decode", Err: err}
	}
	return d.Normalize(), nil
}

func decodeColor(raw json.RawMessage) (particle.Color, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return particle.Color{}, fmt.Errorf("%w: color is missing", particle.ErrMissingField)
	}
	var channels []float64
	if err := json.Unmarshal(raw, &channels); err != nil {
		return particle.Color{}, fmt.Errorf("%w: %s", particle.ErrMalformedColor, raw)
	}
	vals := make([]int, len(channels))
	for k, ch := range channels {
		if ch != math.Trunc(ch) {
			return particle.Color{}, fmt.Errorf("%w: channel %v is not an integer", particle.ErrMalformedColor, ch)
		}
		// Clamped before the conversion: int() of an out-of-range float is
		// implementation-defined.
		vals[k] = int(math.Max(0, math.Min(255, ch)))
	}
	return particle.NewColor(vals...)
}
