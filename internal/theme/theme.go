package theme

import (
	"fmt"
	"math"
)

// Scheme selects how secondary colors are derived from the primary.
type Scheme string

const (
	SchemeMonochromatic Scheme = "monochromatic"
	SchemeComplementary Scheme = "complementary"
)

const (
	// DefaultPrimary is used when a request carries no primary color.
	DefaultPrimary = "#3B82F6"
	// DefaultBackground is the canvas color when unset.
	DefaultBackground = "#FFFFFF"
	// DefaultFontFamily matches the shipped template assets.
	DefaultFontFamily = "Inter, Helvetica, Arial, sans-serif"

	// Monochromatic palettes step lightness across this range.
	shadeCount   = 7
	shadeLightLo = 0.15
	shadeLightHi = 0.85

	// Slot fills stay inside a narrower band so text keeps contrast.
	slotLightLo = 0.30
	slotLightHi = 0.80
)

// Spec is the theme block of an incoming diagram request. Optional fields
// are pointers or empty strings so that absence is distinguishable from a
// zero value; smart_theming defaults to enabled when omitted.
type Spec struct {
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	AccentColor    string `json:"accent_color,omitempty"`
	Scheme         Scheme `json:"scheme,omitempty"`
	Background     string `json:"background,omitempty"`
	TextColor      string `json:"text_color,omitempty"`
	FontFamily     string `json:"font_family,omitempty"`
	Style          string `json:"style,omitempty"`
	SmartTheming   *bool  `json:"smart_theming,omitempty"`
}

// SmartEnabled reports whether flat theming (borders equal fills, no
// gradients, titles stripped) applies. Nil specs and omitted fields count
// as enabled.
func (s *Spec) SmartEnabled() bool {
	if s == nil || s.SmartTheming == nil {
		return true
	}
	return *s.SmartTheming
}

// Resolved is a fully-populated theme: every field is a valid 6-digit hex
// color and the palette obeys the scheme's distinctness rules. The struct
// is part of the cache key, so field names are stable.
type Resolved struct {
	Primary      string   `json:"primary"`
	Secondary    string   `json:"secondary"`
	Accent       string   `json:"accent"`
	Background   string   `json:"background"`
	Text         string   `json:"text"`
	FontFamily   string   `json:"font_family"`
	Scheme       Scheme   `json:"scheme"`
	Shades       []string `json:"shades"`
	SmartTheming bool     `json:"smart_theming"`
}

// Resolve fills defaults and derives the scheme palette. A nil spec yields
// the default monochromatic blue theme. Malformed hex fields are rejected
// rather than silently replaced.
func Resolve(spec *Spec) (Resolved, error) {
	if spec == nil {
		spec = &Spec{}
	}

	primaryHex := spec.PrimaryColor
	if primaryHex == "" {
		primaryHex = DefaultPrimary
	}
	primary, err := ParseHex(primaryHex)
	if err != nil {
		return Resolved{}, fmt.Errorf("primary_color: %w", err)
	}

	backgroundHex := spec.Background
	if backgroundHex == "" {
		backgroundHex = DefaultBackground
	}
	background, err := ParseHex(backgroundHex)
	if err != nil {
		return Resolved{}, fmt.Errorf("background: %w", err)
	}

	scheme := spec.Scheme
	if scheme == "" {
		scheme = SchemeMonochromatic
	}
	if scheme != SchemeMonochromatic && scheme != SchemeComplementary {
		return Resolved{}, fmt.Errorf("unknown color scheme %q", scheme)
	}

	resolved := Resolved{
		Primary:      primary.Hex(),
		Background:   background.Hex(),
		FontFamily:   spec.FontFamily,
		Scheme:       scheme,
		SmartTheming: spec.SmartEnabled(),
	}
	if resolved.FontFamily == "" {
		resolved.FontFamily = DefaultFontFamily
	}

	if spec.TextColor != "" {
		text, err := ParseHex(spec.TextColor)
		if err != nil {
			return Resolved{}, fmt.Errorf("text_color: %w", err)
		}
		resolved.Text = text.Hex()
	} else {
		resolved.Text = ContrastText(background)
	}

	switch scheme {
	case SchemeMonochromatic:
		resolved.Shades = monochromaticShades(primary)
		resolved.Secondary, err = colorOrDefault(spec.SecondaryColor, resolved.Shades[4])
		if err != nil {
			return Resolved{}, fmt.Errorf("secondary_color: %w", err)
		}
		resolved.Accent, err = colorOrDefault(spec.AccentColor, resolved.Shades[2])
		if err != nil {
			return Resolved{}, fmt.Errorf("accent_color: %w", err)
		}
	case SchemeComplementary:
		resolved.Secondary, err = colorOrDefault(spec.SecondaryColor, Rotate(primary, 180).Hex())
		if err != nil {
			return Resolved{}, fmt.Errorf("secondary_color: %w", err)
		}
		resolved.Accent, err = colorOrDefault(spec.AccentColor, Rotate(primary, 120).Hex())
		if err != nil {
			return Resolved{}, fmt.Errorf("accent_color: %w", err)
		}
		// Achromatic primaries make hue rotation a no-op; force the
		// distinctness invariant through lightness instead.
		resolved.Secondary = distinctFrom(resolved.Secondary, resolved.Primary)
		resolved.Accent = distinctFrom(resolved.Accent, resolved.Primary, resolved.Secondary)
		resolved.Shades = []string{resolved.Primary, resolved.Secondary, resolved.Accent}
	}

	return resolved, nil
}

func colorOrDefault(hex, fallback string) (string, error) {
	if hex == "" {
		return fallback, nil
	}
	parsed, err := ParseHex(hex)
	if err != nil {
		return "", err
	}
	return parsed.Hex(), nil
}

// monochromaticShades steps lightness from 0.15 to 0.85 in seven steps at
// the primary's hue and saturation. Steps are strictly increasing, so the
// entries are pairwise distinct.
func monochromaticShades(primary RGB) []string {
	hsl := primary.ToHSL()
	shades := make([]string, 0, shadeCount)
	for i := 0; i < shadeCount; i++ {
		l := shadeLightLo + (shadeLightHi-shadeLightLo)*float64(i)/float64(shadeCount-1)
		shades = append(shades, HSL{H: hsl.H, S: hsl.S, L: l}.ToRGB().Hex())
	}
	return shades
}

// SlotPalette returns n pairwise-distinct fill colors for template slots.
// Monochromatic themes interpolate lightness from 0.30 to 0.80 across the
// slots; complementary themes cycle primary, secondary, accent extended by
// lightness-shifted variants.
func (r Resolved) SlotPalette(n int) []string {
	if n <= 0 {
		return nil
	}

	if r.Scheme == SchemeComplementary {
		return r.complementarySlots(n)
	}

	primary, err := ParseHex(r.Primary)
	if err != nil {
		primary, _ = ParseHex(DefaultPrimary)
	}
	hsl := primary.ToHSL()

	palette := make([]string, 0, n)
	for i := 0; i < n; i++ {
		l := (slotLightLo + slotLightHi) / 2
		if n > 1 {
			l = slotLightLo + (slotLightHi-slotLightLo)*float64(i)/float64(n-1)
		}
		palette = append(palette, HSL{H: hsl.H, S: hsl.S, L: l}.ToRGB().Hex())
	}
	return dedupePalette(palette)
}

func (r Resolved) complementarySlots(n int) []string {
	base := []string{r.Primary, r.Secondary, r.Accent}
	if n <= len(base) {
		return dedupePalette(base[:n])
	}

	palette := make([]string, 0, n)
	palette = append(palette, base...)
	for i := len(base); i < n; i++ {
		anchor, err := ParseHex(base[i%len(base)])
		if err != nil {
			anchor, _ = ParseHex(DefaultPrimary)
		}
		// Alternate lighter and darker rounds around each anchor.
		round := float64(i/len(base)+1) * 0.15
		if (i/len(base))%2 == 1 {
			round = -round
		}
		hsl := anchor.ToHSL()
		palette = append(palette, HSL{H: hsl.H, S: hsl.S, L: clamp01Band(hsl.L + round)}.ToRGB().Hex())
	}
	return dedupePalette(palette)
}

// TextOn returns the text color for content drawn over the given fill.
func (r Resolved) TextOn(fill string) string {
	return ContrastTextHex(fill)
}

// clamp01Band keeps slot lightness away from pure black and white so
// contrast text stays readable.
func clamp01Band(l float64) float64 {
	return math.Min(0.92, math.Max(0.08, l))
}

// dedupePalette nudges lightness on collisions until entries are pairwise
// distinct. Collisions only occur for degenerate inputs (near-black or
// near-white anchors), so a few small steps always suffice.
func dedupePalette(palette []string) []string {
	seen := make(map[string]struct{}, len(palette))
	for i, hex := range palette {
		adjusted := hex
		for attempt := 0; attempt < 64; attempt++ {
			if _, dup := seen[adjusted]; !dup {
				break
			}
			rgb, err := ParseHex(adjusted)
			if err != nil {
				break
			}
			hsl := rgb.ToHSL()
			step := 0.03 * float64(attempt+1)
			l := hsl.L + step
			if l > 0.95 {
				l = hsl.L - step
			}
			adjusted = HSL{H: hsl.H, S: hsl.S, L: clamp01(l)}.ToRGB().Hex()
		}
		seen[adjusted] = struct{}{}
		palette[i] = adjusted
	}
	return palette
}

func distinctFrom(hex string, taken ...string) string {
	conflict := false
	for _, t := range taken {
		if hex == t {
			conflict = true
			break
		}
	}
	if !conflict {
		return hex
	}
	rgb, err := ParseHex(hex)
	if err != nil {
		return hex
	}
	hsl := rgb.ToHSL()
	for attempt := 1; attempt <= 16; attempt++ {
		l := hsl.L + 0.12*float64(attempt)
		if l > 0.92 {
			l = hsl.L - 0.12*float64(attempt)
		}
		candidate := HSL{H: hsl.H, S: hsl.S, L: clamp01Band(l)}.ToRGB().Hex()
		clean := true
		for _, t := range taken {
			if candidate == t {
				clean = false
				break
			}
		}
		if clean {
			return candidate
		}
	}
	return hex
}
