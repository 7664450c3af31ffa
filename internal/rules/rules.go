package rules

import (
	"slices"
	"strings"
	"time"
	"unicode"
)

// Fallback kinds assigned to categories for the outer execution layer.
const (
	FallbackIgnite  = "ignite"
	FallbackFlow    = "flow"
	FallbackRise    = "rise"
	FallbackGravity = "gravity"
)

// BodyPlaceholder marks where the explosion template embeds the original
// fragment.
const BodyPlaceholder = "__BODY__"

// Thresholds are the numeric knobs of the pipeline.
type Thresholds struct {
	MinColorDistance    float64
	MinFragmentLength   int
	GenericLiquidLength int
	NoiseProbability    float64
	StepBudget          int
	SlowThreshold       time.Duration
	IDOffset            uint32
	Degenerate          string
}

// ColorShift is an additive per-channel offset with an optional lower bound.
type ColorShift struct {
	Offset [3]int
	Floor  [3]int
}

// Variant is a keyword-selected alternative template within a category.
type Variant struct {
	Name     string
	Keywords []string
	Template string
}

// Category groups names that share behavior by keyword.
type Category struct {
	Name       string
	Keywords   []string
	Template   string
	Fallback   string
	ColorShift *ColorShift
	Variants   []Variant
}

// Matches reports whether one of name's words is a category keyword.
func (c *Category) Matches(name string) bool {
	return matchAny(c.Keywords, name)
}

// Dispatch fixes the order in which categories are consulted for each
// decision, so a name matching several categories resolves predictably.
type Dispatch struct {
	TemplateOrder []string
	FallbackOrder []string
	ColorOrder    []string
}

// Rules is the decoded, validated rule set.
type Rules struct {
	Thresholds Thresholds
	Dispatch   Dispatch
	Categories map[string]*Category
	Templates  map[string]string
}

// Category returns the named category, or nil.
func (r *Rules) Category(name string) *Category {
	return r.Categories[name]
}

// InCategory reports whether particleName matches the named category.
func (r *Rules) InCategory(category, particleName string) bool {
	c := r.Categories[category]
	return c != nil && c.Matches(particleName)
}

// CategoriesOf returns the sorted names of every category particleName
// matches.
func (r *Rules) CategoriesOf(particleName string) []string {
	var out []string
	for name, c := range r.Categories {
		if c.Matches(particleName) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// TrivialTemplate picks the replacement behavior for a fragment too small to
// trust. The first category in template order that matches the name wins; a
// matching variant overrides the category template. Names that match nothing
// get the default template. The second result names the choice.
func (r *Rules) TrivialTemplate(particleName string) (string, string) {
	for _, name := range r.Dispatch.TemplateOrder {
		c := r.Categories[name]
		if c == nil || !c.Matches(particleName) {
			continue
		}
		for _, v := range c.Variants {
			if matchAny(v.Keywords, particleName) {
				return v.Template, name + "/" + v.Name
			}
		}
		return c.Template, name
	}
	return r.Templates["default"], "default"
}

// Fallback returns the outer-layer fallback kind for a name.
func (r *Rules) Fallback(particleName string) string {
	for _, name := range r.Dispatch.FallbackOrder {
		c := r.Categories[name]
		if c != nil && c.Fallback != "" && c.Matches(particleName) {
			return c.Fallback
		}
	}
	return FallbackGravity
}

// ColorShift returns the color shift of the first matching category in
// color order.
func (r *Rules) ColorShift(particleName string) (*ColorShift, string, bool) {
	for _, name := range r.Dispatch.ColorOrder {
		c := r.Categories[name]
		if c != nil && c.ColorShift != nil && c.Matches(particleName) {
			return c.ColorShift, name, true
		}
	}
	return nil, "", false
}

// Explosion returns the explosion template with body embedded.
func (r *Rules) Explosion(body string) string {
	return strings.Replace(r.Templates["explosion"], BodyPlaceholder, strings.TrimSpace(body), 1)
}

// IsDegenerate reports whether fragment is the degenerate expression once
// whitespace is ignored.
func (r *Rules) IsDegenerate(fragment string) bool {
	return StripSpace(fragment) == StripSpace(r.Thresholds.Degenerate)
}

// StripSpace removes every whitespace rune.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return -1
		}
		return r
	}, s)
}

// matchAny reports whether a keyword equals one of the name's words, or a
// plural of it. Words are split on anything that is not a letter or digit, so
// "HAIR" is not "air" and "JASMINE" is not "mine".
func matchAny(keywords []string, name string) bool {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		for _, w := range words {
			if w == kw || w == kw+"s" || w == kw+"es" {
				return true
			}
		}
	}
	return false
}
