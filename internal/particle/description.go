// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Description, the structured answer of the generator.
//
// Why normalize the name?
//
// The generator is shown built-in elements referenced as upper-case constants
// (FIRE, WATER) and routinely refers to the new particle the same way. A
// normalized name is therefore both the registry key and the identifier that
// the rewriter resolves to the particle's numeric id.
package particle

import (
	"fmt"
	"strings"
	"unicode"
)

// Description is the generator's structured description of a particle.
// Behavior and Interactions are advisory text; only ActionCode is executed.
type Description struct {
	Name         string `json:"name" yaml:"name"`
	Color        Color  `json:"color" yaml:"-"`
	Behavior     string `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Interactions string `json:"interactions,omitempty" yaml:"interactions,omitempty"`
	ActionCode   string `json:"action_code" yaml:"action_code"`
}

// NormalizeName upper-cases the name and folds every run of characters that
// cannot appear in an identifier into a single underscore.
func NormalizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if r == '_' {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Normalize returns a copy with the name normalized and the color clamped.
func (d Description) Normalize() Description {
	d.Name = NormalizeName(d.Name)
	d.Color = d.Color.Clamp()
	return d
}

// Check reports whether the required fields are present.
func (d Description) Check() error {
	if NormalizeName(d.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if strings.TrimSpace(d.ActionCode) == "" {
		return fmt.Errorf("%w: action_code", ErrMissingField)
	}
	return nil
}

// Identifier is the name as it appears inside fragments.
func (d Description) Identifier() string {
	return NormalizeName(d.Name)
}
