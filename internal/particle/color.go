// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Color, the three-channel display color of a particle.
package particle

import (
	"fmt"
	"image/color"
	"math"
)

// Color is an RGB triple. Channels are always within [0,255].
type Color [3]int

// NewColor builds a Color from exactly three channel values, clamping each
// into [0,255].
func NewColor(vals ...int) (Color, error) {
	if len(vals) != 3 {
		return Color{}, fmt.Errorf("%w: expected 3 channels, got %d", ErrMalformedColor, len(vals))
	}
	return Color{vals[0], vals[1], vals[2]}.Clamp(), nil
}

// ColorFromFloats rounds and clamps float channels. It is used by the color
// adjuster, whose arithmetic happens in float space.
func ColorFromFloats(r, g, b float64) Color {
	return Color{roundChannel(r), roundChannel(g), roundChannel(b)}
}

func roundChannel(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return clampChannel(int(math.Round(v)))
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// Clamp returns a copy with every channel forced into [0,255].
func (c Color) Clamp() Color {
	return Color{clampChannel(c[0]), clampChannel(c[1]), clampChannel(c[2])}
}

// R returns the red channel.
func (c Color) R() int { return c[0] }

// G returns the green channel.
func (c Color) G() int { return c[1] }

// B returns the blue channel.
func (c Color) B() int { return c[2] }

// Complement returns 255-c for every channel.
func (c Color) Complement() Color {
	return Color{255 - c[0], 255 - c[1], 255 - c[2]}
}

// RGBA converts to an opaque image/color value.
func (c Color) RGBA() color.RGBA {
	cc := c.Clamp()
	return color.RGBA{R: uint8(cc[0]), G: uint8(cc[1]), B: uint8(cc[2]), A: 255}
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	cc := c.Clamp()
	return fmt.Sprintf("#%02x%02x%02x", cc[0], cc[1], cc[2])
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return fmt.Sprintf("[%d,%d,%d]", c[0], c[1], c[2])
}
