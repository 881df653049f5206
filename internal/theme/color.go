// Package theme derives color palettes and text-contrast colors from a
// request's primary color. All math is pure; the resolver performs no I/O.
package theme

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RGB is an 8-bit-per-channel sRGB color.
type RGB struct {
	R, G, B uint8
}

// HSL holds hue in degrees [0,360) and saturation/lightness in [0,1].
type HSL struct {
	H, S, L float64
}

var hexPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// ValidHex reports whether s is a 6-digit hex color, with or without the
// leading '#'.
func ValidHex(s string) bool {
	return hexPattern.MatchString(strings.TrimSpace(s))
}

// ParseHex parses a 6-digit hex color. Shorthand (3-digit) and alpha forms
// are rejected; the wire contract requires exactly six digits.
func ParseHex(s string) (RGB, error) {
	trimmed := strings.TrimSpace(s)
	if !ValidHex(trimmed) {
		return RGB{}, fmt.Errorf("invalid hex color %q: want 6 hex digits", s)
	}
	trimmed = strings.TrimPrefix(trimmed, "#")
	value, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return RGB{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
	}, nil
}

// Hex renders the color as an uppercase "#RRGGBB" string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ToHSL converts to HSL. Hue is 0 for achromatic colors.
func (c RGB) ToHSL() HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	l := (max + min) / 2

	if delta == 0 {
		return HSL{H: 0, S: 0, L: l}
	}

	var s float64
	if l > 0.5 {
		s = delta / (2 - max - min)
	} else {
		s = delta / (max + min)
	}

	var h float64
	switch max {
	case r:
		h = (g - b) / delta
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60

	return HSL{H: h, S: s, L: l}
}

// ToRGB converts to 8-bit sRGB, rounding each channel half-up.
func (c HSL) ToRGB() RGB {
	h := math.Mod(c.H, 360)
	if h < 0 {
		h += 360
	}
	s := clamp01(c.S)
	l := clamp01(c.L)

	if s == 0 {
		v := roundChannel(l)
		return RGB{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	hue := h / 360
	return RGB{
		R: roundChannel(hueToChannel(p, q, hue+1.0/3)),
		G: roundChannel(hueToChannel(p, q, hue)),
		B: roundChannel(hueToChannel(p, q, hue-1.0/3)),
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}

// roundChannel scales a [0,1] value to 8 bits, rounding half-up.
func roundChannel(v float64) uint8 {
	scaled := math.Floor(v*255 + 0.5)
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return uint8(scaled)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Luminance is the WCAG relative luminance on linearized sRGB channels:
// 0.2126 R + 0.7152 G + 0.0722 B.
func Luminance(c RGB) float64 {
	return 0.2126*linearize(c.R) + 0.7152*linearize(c.G) + 0.0722*linearize(c.B)
}

func linearize(channel uint8) float64 {
	v := float64(channel) / 255
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// ContrastRatio is the WCAG ratio (L1+0.05)/(L2+0.05) with L1 the lighter.
func ContrastRatio(a, b RGB) float64 {
	la := Luminance(a)
	lb := Luminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// ContrastText picks the text color for a background: dark text on light
// backgrounds (relative luminance >= 0.5), light text otherwise.
func ContrastText(background RGB) string {
	if Luminance(background) >= 0.5 {
		return "#000000"
	}
	return "#FFFFFF"
}

// ContrastTextHex is ContrastText for a hex background. Unparseable input
// falls back to dark text on the default white background.
func ContrastTextHex(background string) string {
	rgb, err := ParseHex(background)
	if err != nil {
		return "#000000"
	}
	return ContrastText(rgb)
}

// Rotate returns the color with its hue rotated by degrees, keeping
// saturation and lightness.
func Rotate(c RGB, degrees float64) RGB {
	hsl := c.ToHSL()
	hsl.H = math.Mod(hsl.H+degrees, 360)
	if hsl.H < 0 {
		hsl.H += 360
	}
	return hsl.ToRGB()
}

// WithLightness returns the color with lightness replaced, keeping hue and
// saturation.
func WithLightness(c RGB, lightness float64) RGB {
	hsl := c.ToHSL()
	hsl.L = clamp01(lightness)
	return hsl.ToRGB()
}
