package theme

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RGB
		wantErr bool
	}{
		{name: "with hash", input: "#7C3AED", want: RGB{R: 0x7C, G: 0x3A, B: 0xED}},
		{name: "without hash", input: "7c3aed", want: RGB{R: 0x7C, G: 0x3A, B: 0xED}},
		{name: "surrounding space", input: "  #FFFFFF ", want: RGB{R: 255, G: 255, B: 255}},
		{name: "shorthand rejected", input: "#FFF", wantErr: true},
		{name: "alpha rejected", input: "#11223344", wantErr: true},
		{name: "not hex", input: "#GGHHII", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHSLRoundTrip(t *testing.T) {
	for _, hex := range []string{"#7C3AED", "#2563EB", "#000000", "#FFFFFF", "#808080", "#FF0000", "#00FF00", "#0000FF"} {
		rgb, err := ParseHex(hex)
		require.NoError(t, err)
		back := rgb.ToHSL().ToRGB()
		assert.Equal(t, hex, back.Hex(), "round trip for %s", hex)
	}
}

func TestLuminanceAndContrast(t *testing.T) {
	white, _ := ParseHex("#FFFFFF")
	black, _ := ParseHex("#000000")

	assert.InDelta(t, 1.0, Luminance(white), 1e-9)
	assert.InDelta(t, 0.0, Luminance(black), 1e-9)
	assert.InDelta(t, 21.0, ContrastRatio(white, black), 1e-9)
	assert.Equal(t, ContrastRatio(white, black), ContrastRatio(black, white))

	assert.Equal(t, "#000000", ContrastText(white))
	assert.Equal(t, "#FFFFFF", ContrastText(black))

	violet, _ := ParseHex("#7C3AED")
	assert.Equal(t, "#FFFFFF", ContrastText(violet))
}

func TestResolveDefaults(t *testing.T) {
	resolved, err := Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPrimary, resolved.Primary)
	assert.Equal(t, "#FFFFFF", resolved.Background)
	assert.Equal(t, "#000000", resolved.Text)
	assert.Equal(t, SchemeMonochromatic, resolved.Scheme)
	assert.True(t, resolved.SmartTheming)
	assert.Len(t, resolved.Shades, 7)
}

func TestResolveMonochromaticShades(t *testing.T) {
	resolved, err := Resolve(&Spec{PrimaryColor: "#7C3AED", Scheme: SchemeMonochromatic})
	require.NoError(t, err)
	require.Len(t, resolved.Shades, 7)

	primary, _ := ParseHex("#7C3AED")
	wantHue := primary.ToHSL().H

	seen := map[string]struct{}{}
	previous := -1.0
	for i, shade := range resolved.Shades {
		rgb, err := ParseHex(shade)
		require.NoError(t, err, "shade %d must be valid hex", i)
		hsl := rgb.ToHSL()

		wantL := 0.15 + 0.70*float64(i)/6
		assert.InDelta(t, wantL, hsl.L, 0.02, "shade %d lightness", i)
		assert.InDelta(t, wantHue, hsl.H, 2.0, "shade %d hue", i)
		assert.Greater(t, hsl.L, previous, "lightness must increase")
		previous = hsl.L

		_, dup := seen[shade]
		assert.False(t, dup, "shades must be pairwise distinct")
		seen[shade] = struct{}{}
	}
}

func TestResolveComplementary(t *testing.T) {
	resolved, err := Resolve(&Spec{PrimaryColor: "#2563EB", Scheme: SchemeComplementary})
	require.NoError(t, err)

	primary, _ := ParseHex(resolved.Primary)
	secondary, _ := ParseHex(resolved.Secondary)
	accent, _ := ParseHex(resolved.Accent)

	baseHue := primary.ToHSL().H
	assert.InDelta(t, math.Mod(baseHue+180, 360), secondary.ToHSL().H, 2.0)
	assert.InDelta(t, math.Mod(baseHue+120, 360), accent.ToHSL().H, 2.0)

	assert.NotEqual(t, resolved.Primary, resolved.Secondary)
	assert.NotEqual(t, resolved.Primary, resolved.Accent)
	assert.NotEqual(t, resolved.Secondary, resolved.Accent)
	assert.Equal(t, []string{resolved.Primary, resolved.Secondary, resolved.Accent}, resolved.Shades)
}

func TestResolveComplementaryAchromaticPrimary(t *testing.T) {
	// Hue rotation cannot separate grays; distinctness must still hold.
	resolved, err := Resolve(&Spec{PrimaryColor: "#808080", Scheme: SchemeComplementary})
	require.NoError(t, err)

	assert.NotEqual(t, resolved.Primary, resolved.Secondary)
	assert.NotEqual(t, resolved.Primary, resolved.Accent)
	assert.NotEqual(t, resolved.Secondary, resolved.Accent)
}

func TestResolveExplicitOverrides(t *testing.T) {
	off := false
	resolved, err := Resolve(&Spec{
		PrimaryColor:   "#7C3AED",
		SecondaryColor: "#112233",
		AccentColor:    "#445566",
		Background:     "#101010",
		TextColor:      "#FAFAFA",
		Scheme:         SchemeMonochromatic,
		SmartTheming:   &off,
	})
	require.NoError(t, err)

	assert.Equal(t, "#112233", resolved.Secondary)
	assert.Equal(t, "#445566", resolved.Accent)
	assert.Equal(t, "#101010", resolved.Background)
	assert.Equal(t, "#FAFAFA", resolved.Text)
	assert.False(t, resolved.SmartTheming)
}

func TestResolveRejectsMalformedColors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{name: "primary", spec: Spec{PrimaryColor: "purple"}},
		{name: "secondary", spec: Spec{SecondaryColor: "#12"}},
		{name: "accent", spec: Spec{AccentColor: "#ZZZZZZ"}},
		{name: "background", spec: Spec{Background: "white"}},
		{name: "text", spec: Spec{TextColor: "#0011"}},
		{name: "scheme", spec: Spec{Scheme: "triadic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(&tt.spec)
			assert.Error(t, err)
		})
	}
}

func TestSlotPaletteMonochromatic(t *testing.T) {
	resolved, err := Resolve(&Spec{PrimaryColor: "#7C3AED", Scheme: SchemeMonochromatic})
	require.NoError(t, err)

	palette := resolved.SlotPalette(3)
	require.Len(t, palette, 3)

	wantLightness := []float64{0.30, 0.55, 0.80}
	for i, hex := range palette {
		rgb, err := ParseHex(hex)
		require.NoError(t, err)
		hsl := rgb.ToHSL()
		assert.InDelta(t, wantLightness[i], hsl.L, 0.02, "slot %d lightness", i)
		assert.InDelta(t, 262.0, hsl.H, 2.0, "slot %d hue", i)
	}
	assert.Equal(t, "#3C0D8C", palette[0])
	assert.Equal(t, "#732DEC", palette[1])
	assert.Equal(t, "#C1A2F6", palette[2])
}

func TestSlotPaletteSingleSlot(t *testing.T) {
	resolved, err := Resolve(&Spec{PrimaryColor: "#7C3AED"})
	require.NoError(t, err)

	palette := resolved.SlotPalette(1)
	require.Len(t, palette, 1)

	rgb, err := ParseHex(palette[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.55, rgb.ToHSL().L, 0.02)
}

func TestSlotPaletteDistinctness(t *testing.T) {
	schemes := []Scheme{SchemeMonochromatic, SchemeComplementary}
	for _, scheme := range schemes {
		for _, n := range []int{2, 3, 4, 5, 7, 9} {
			resolved, err := Resolve(&Spec{PrimaryColor: "#2563EB", Scheme: scheme})
			require.NoError(t, err)

			palette := resolved.SlotPalette(n)
			require.Len(t, palette, n, "scheme %s n=%d", scheme, n)

			seen := map[string]struct{}{}
			for _, hex := range palette {
				assert.True(t, ValidHex(hex), "palette entry %q", hex)
				_, dup := seen[hex]
				assert.False(t, dup, "scheme %s n=%d: duplicate %s", scheme, n, hex)
				seen[hex] = struct{}{}
			}
		}
	}
}

func TestSlotPaletteComplementaryLeadsWithBase(t *testing.T) {
	resolved, err := Resolve(&Spec{PrimaryColor: "#2563EB", Scheme: SchemeComplementary})
	require.NoError(t, err)

	palette := resolved.SlotPalette(4)
	require.Len(t, palette, 4)
	assert.Equal(t, resolved.Primary, palette[0])
	assert.Equal(t, resolved.Secondary, palette[1])
	assert.Equal(t, resolved.Accent, palette[2])
}

func TestSlotPaletteZeroAndNegative(t *testing.T) {
	resolved, err := Resolve(nil)
	require.NoError(t, err)
	assert.Nil(t, resolved.SlotPalette(0))
	assert.Nil(t, resolved.SlotPalette(-3))
}

func TestTextOn(t *testing.T) {
	resolved, err := Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, "#000000", resolved.TextOn("#C1A2F6"))
	assert.Equal(t, "#FFFFFF", resolved.TextOn("#3C0D8C"))
	assert.Equal(t, "#000000", resolved.TextOn("not-a-color"))
}

func TestSmartEnabled(t *testing.T) {
	on := true
	off := false

	var nilSpec *Spec
	assert.True(t, nilSpec.SmartEnabled())
	assert.True(t, (&Spec{}).SmartEnabled())
	assert.True(t, (&Spec{SmartTheming: &on}).SmartEnabled())
	assert.False(t, (&Spec{SmartTheming: &off}).SmartEnabled())
}
