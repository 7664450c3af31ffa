// Package uniqueness keeps generated particles distinguishable from the
// built-in elements. Validate flags descriptions that look or behave like a
// built-in; AdjustColor repairs the color deterministically.
package uniqueness

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/specialistvlad/sandforge/internal/particle"
	"github.com/specialistvlad/sandforge/internal/rules"
	"github.com/specialistvlad/sandforge/internal/sim"
)

// attenuation is applied after the saturation boost for names that match no
// color category.
const attenuation = 0.85

// Swatch is a named palette color.
type Swatch struct {
	Name  string
	Color particle.Color
}

// Palette converts elements to swatches.
func Palette(elements []sim.Element) []Swatch {
	out := make([]Swatch, 0, len(elements))
	for _, el := range elements {
		out = append(out, Swatch{Name: el.Name, Color: el.Color})
	}
	return out
}

// Result is the outcome of Validate.
type Result struct {
	Valid    bool
	Reason   string
	Nearest  string
	Distance float64
}

// Validator checks descriptions against a fixed palette.
type Validator struct {
	rules   *rules.Rules
	palette []Swatch
}

// New returns a validator for the given palette. A nil palette means the
// built-in elements, excluding BACKGROUND.
func New(r *rules.Rules, palette []Swatch) *Validator {
	if palette == nil {
		for _, sw := range Palette(sim.Builtins()) {
			if sw.Name == "BACKGROUND" {
				continue
			}
			palette = append(palette, sw)
		}
	}
	return &Validator{rules: r, palette: palette}
}

// Distance is the Euclidean distance between two colors.
func Distance(a, b particle.Color) float64 {
	return r3.Norm(r3.Sub(vec(a), vec(b)))
}

func vec(c particle.Color) r3.Vec {
	return r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
}

// Nearest returns the palette entry closest to c.
func (v *Validator) Nearest(c particle.Color) (Swatch, float64) {
	best, bestDist := Swatch{}, math.Inf(1)
	for _, sw := range v.palette {
		if d := Distance(c, sw.Color); d < bestDist {
			best, bestDist = sw, d
		}
	}
	return best, bestDist
}

// Validate reports whether d is distinct enough from the built-ins.
func (v *Validator) Validate(d particle.Description) Result {
	th := v.rules.Thresholds
	nearest, dist := v.Nearest(d.Color)
	res := Result{Valid: true, Nearest: nearest.Name, Distance: dist}

	switch {
	case dist < th.MinColorDistance:
		res.Valid = false
		res.Reason = fmt.Sprintf("color %s is %.1f from %s", d.Color, dist, nearest.Name)
	case v.rules.IsDegenerate(d.ActionCode):
		res.Valid = false
		res.Reason = "action is the degenerate gravity call"
	case v.rules.InCategory("fire", d.Name) && onlyChecks(d.ActionCode, "FIRE"):
		res.Valid = false
		res.Reason = "fire-like particle only reacts to FIRE"
	case v.rules.InCategory("liquid", d.Name) &&
		strings.Contains(d.ActionCode, "doDensityLiquid") &&
		len(rules.StripSpace(d.ActionCode)) < th.GenericLiquidLength:
		res.Valid = false
		res.Reason = "liquid-like particle only calls the generic liquid flow"
	}
	return res
}

// AdjustColor shifts c away from the built-ins using the color category of
// name. The result always differs from the clamped input.
func (v *Validator) AdjustColor(c particle.Color, name string) particle.Color {
	in := c.Clamp()
	var out [3]float64

	if shift, _, ok := v.rules.ColorShift(name); ok {
		for k := range out {
			ch := in[k] + shift.Offset[k]
			if shift.Floor[k] >= 0 && ch < shift.Floor[k] {
				ch = shift.Floor[k]
			}
			out[k] = float64(ch)
		}
	} else {
		peak := max(in[0], in[1], in[2])
		for k := range out {
			ch := 255.0
			if peak > 0 {
				ch = float64(in[k]) * 255 / float64(peak)
			}
			out[k] = 255 - ch*attenuation
		}
	}

	res := particle.ColorFromFloats(out[0], out[1], out[2])
	if res == in {
		return in.Complement()
	}
	return res
}

// Check validates d and repairs its color when it is flagged. The returned
// description is the one to register.
func (v *Validator) Check(d particle.Description) (particle.Description, Result) {
	res := v.Validate(d)
	if !res.Valid {
		d.Color = v.AdjustColor(d.Color, d.Name)
	}
	return d, res
}

var (
	ifHead    = regexp.MustCompile(`\bif\s*\(`)
	upperWord = regexp.MustCompile(`\b[A-Z][A-Z0-9_]*\b`)
)

// onlyChecks reports whether fragment has at least one conditional and every
// conditional references exactly the element id and no other.
func onlyChecks(fragment, id string) bool {
	conds := Conditions(fragment)
	if len(conds) == 0 {
		return false
	}
	for _, cond := range conds {
		words := upperWord.FindAllString(cond, -1)
		if len(words) == 0 {
			return false
		}
		for _, w := range words {
			if w != id {
				return false
			}
		}
	}
	return true
}

// Conditions returns the text inside the parentheses of every if statement.
func Conditions(fragment string) []string {
	var out []string
	for _, loc := range ifHead.FindAllStringIndex(fragment, -1) {
		open := loc[1] - 1
		if end := matchParen(fragment, open); end > open {
			out = append(out, fragment[open+1:end])
		}
	}
	return out
}

func matchParen(s string, open int) int {
	depth := 0
	for k := open; k < len(s); k++ {
		switch s[k] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return k
			}
		}
	}
	return -1
}
