package template

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

func loadTestdata(t *testing.T, dir string) (*Library, error) {
	t.Helper()
	return Load(filepath.Join("testdata", dir), nil)
}

func loadShipped(t *testing.T) *Library {
	t.Helper()
	lib, err := Load(filepath.Join("..", "..", "templates"), nil)
	require.NoError(t, err, "shipped template set must load")
	return lib
}

func slotFill(t *testing.T, doc, slot string) string {
	t.Helper()
	re := regexp.MustCompile(`<[a-zA-Z][^>]*\b(?:data-slot|id)="` + slot + `"[^>]*>`)
	tag := re.FindString(doc)
	require.NotEmpty(t, tag, "slot %s must exist", slot)
	m := regexp.MustCompile(`\bfill="([^"]*)"`).FindStringSubmatch(tag)
	require.NotNil(t, m, "slot %s must carry a fill", slot)
	return m[1]
}

func slotStroke(doc, slot string) string {
	re := regexp.MustCompile(`<[a-zA-Z][^>]*\b(?:data-slot|id)="` + slot + `"[^>]*>`)
	tag := re.FindString(doc)
	m := regexp.MustCompile(`\bstroke="([^"]*)"`).FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1]
}

func TestLoadValidLibrary(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	assert.Equal(t, 2, lib.Len())
	assert.Equal(t, []string{"box", "legacy_box"}, lib.IDs())
	assert.True(t, lib.Has("box"))
	assert.False(t, lib.Has("matrix_2x2"))

	tpl, err := lib.Get("box")
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.TextSlots)
	assert.Equal(t, 2, tpl.FillSlots)
	assert.Contains(t, tpl.Body(), "data-slot=\"fill_1\"")
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		dir     string
		mention string
	}{
		{"bad_xml", "not well-formed"},
		{"missing_slot", "missing slot text_2"},
		{"dup_id", "duplicate template id"},
		{"unknown_field", "renderer"},
		{"no_such_dir", "manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			_, err := loadTestdata(t, tt.dir)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.mention)
		})
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	_, err = lib.Get("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.Fill("nonexistent", nil, theme.Resolved{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFillAppliesLabelsAndPalette(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#7C3AED"})
	require.NoError(t, err)

	svg, err := lib.Fill("box", []string{"Alpha", "Beta"}, th)
	require.NoError(t, err)
	doc := svg.Body

	assert.Contains(t, doc, ">Alpha</text>")
	assert.Contains(t, doc, ">Beta</text>")
	assert.NotContains(t, doc, ">One</text>")

	palette := th.SlotPalette(2)
	assert.Equal(t, palette[0], slotFill(t, doc, "fill_1"))
	assert.Equal(t, palette[1], slotFill(t, doc, "fill_2"))

	// Smart theming: seamless borders and no titles.
	assert.Equal(t, palette[0], slotStroke(doc, "fill_1"))
	assert.NotContains(t, doc, "<title>")
	// Canvas takes the theme background.
	assert.Equal(t, th.Background, slotFill(t, doc, "canvas"))
	// Opacity attributes survive attribute surgery.
	assert.Contains(t, doc, `fill-opacity="0.55"`)
}

func TestFillWithoutSmartThemingKeepsTitlesAndStrokes(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	off := false
	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#7C3AED", SmartTheming: &off})
	require.NoError(t, err)

	svg, err := lib.Fill("box", []string{"Alpha", "Beta"}, th)
	require.NoError(t, err)

	assert.Contains(t, svg.Body, "<title>Box</title>")
	assert.Equal(t, "#94A3B8", slotStroke(svg.Body, "fill_1"), "stroke untouched without smart theming")
}

func TestFillMissingAndExtraLabels(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	th, err := theme.Resolve(nil)
	require.NoError(t, err)

	// Missing label: slot 2 keeps its default text.
	svg, err := lib.Fill("box", []string{"Only"}, th)
	require.NoError(t, err)
	assert.Contains(t, svg.Body, ">Only</text>")
	assert.Contains(t, svg.Body, ">Two</text>")

	// Extra labels are ignored.
	svg, err = lib.Fill("box", []string{"A", "B", "C", "D"}, th)
	require.NoError(t, err)
	assert.NotContains(t, svg.Body, ">C<")
}

func TestFillEscapesLabels(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	th, err := theme.Resolve(nil)
	require.NoError(t, err)

	svg, err := lib.Fill("box", []string{`R&D <"boost"> $1`, "Ops"}, th)
	require.NoError(t, err)

	assert.Contains(t, svg.Body, "R&amp;D &lt;&quot;boost&quot;&gt; $1")
	assert.NotContains(t, svg.Body, `<"boost">`)
}

func TestFillLegacyIDSlots(t *testing.T) {
	lib, err := loadTestdata(t, "ok")
	require.NoError(t, err)

	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#2563EB"})
	require.NoError(t, err)

	svg, err := lib.Fill("legacy_box", []string{"New"}, th)
	require.NoError(t, err)

	assert.Contains(t, svg.Body, ">New</text>")
	assert.Equal(t, th.SlotPalette(1)[0], slotFill(t, svg.Body, "fill_1"))
}

func TestFillPaletteKeyedBySlotID(t *testing.T) {
	lib := loadShipped(t)

	// Two colors across four slots: assignment follows the slot id, so
	// fill_1/fill_3 share a color and adjacent ids always differ.
	svg, err := lib.FillPalette("matrix_2x2", nil, []string{"#111111", "#222222"}, true)
	require.NoError(t, err)
	doc := svg.Body

	assert.Equal(t, "#111111", slotFill(t, doc, "fill_1"))
	assert.Equal(t, "#222222", slotFill(t, doc, "fill_2"))
	assert.Equal(t, "#111111", slotFill(t, doc, "fill_3"))
	assert.Equal(t, "#222222", slotFill(t, doc, "fill_4"))
}

func TestFillPaletteEmptyPalette(t *testing.T) {
	lib := loadShipped(t)

	_, err := lib.FillPalette("matrix_2x2", nil, nil, true)
	assert.ErrorIs(t, err, ErrSlotCount)
}

func TestShippedLibraryCoversTemplateKinds(t *testing.T) {
	lib := loadShipped(t)

	expected := []string{
		"matrix_2x2", "matrix_3x3", "swot",
		"pyramid_3", "pyramid_4", "pyramid_5",
		"hub_spoke_4", "hub_spoke_6",
		"process_flow_3", "process_flow_5",
		"cycle_3", "cycle_4", "cycle_5",
		"funnel_3", "funnel_4", "funnel_5",
		"venn_2", "venn_3",
		"honeycomb_3", "honeycomb_5", "honeycomb_7",
		"gears_3", "fishbone", "timeline", "roadmap_quarterly_4",
		"mind_map",
	}
	for _, id := range expected {
		assert.True(t, lib.Has(id), "missing shipped template %s", id)
	}
	assert.Equal(t, len(expected), lib.Len())
}

func TestShippedPyramidMonochromaticScenario(t *testing.T) {
	lib := loadShipped(t)

	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#7C3AED", Scheme: theme.SchemeMonochromatic})
	require.NoError(t, err)

	labels := []string{"Executive", "Management", "Operations"}
	svg, err := lib.Fill("pyramid_3", labels, th)
	require.NoError(t, err)
	doc := svg.Body

	assert.NotContains(t, doc, "<title>", "smart theming strips titles")

	wantLightness := []float64{0.30, 0.55, 0.80}
	seen := map[string]struct{}{}
	for i := 1; i <= 3; i++ {
		hex := slotFill(t, doc, fmt.Sprintf("fill_%d", i))
		rgb, err := theme.ParseHex(hex)
		require.NoError(t, err)

		hsl := rgb.ToHSL()
		assert.InDelta(t, wantLightness[i-1], hsl.L, 0.02, "fill_%d lightness", i)
		assert.InDelta(t, 262.0, hsl.H, 2.0, "fill_%d hue", i)

		_, dup := seen[hex]
		assert.False(t, dup, "fills must be pairwise distinct")
		seen[hex] = struct{}{}
	}

	// Labels land top to bottom in document order.
	idxExec := strings.Index(doc, ">Executive<")
	idxMgmt := strings.Index(doc, ">Management<")
	idxOps := strings.Index(doc, ">Operations<")
	require.True(t, idxExec > 0 && idxMgmt > 0 && idxOps > 0)
	assert.Less(t, idxExec, idxMgmt)
	assert.Less(t, idxMgmt, idxOps)
}

func TestShippedMatrixComplementaryScenario(t *testing.T) {
	lib := loadShipped(t)

	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#2563EB", Scheme: theme.SchemeComplementary})
	require.NoError(t, err)

	svg, err := lib.Fill("matrix_2x2", []string{"Q1", "Q2", "Q3", "Q4"}, th)
	require.NoError(t, err)
	doc := svg.Body

	fills := map[string]struct{}{}
	for i := 1; i <= 4; i++ {
		hex := slotFill(t, doc, fmt.Sprintf("fill_%d", i))
		assert.True(t, theme.ValidHex(hex))
		fills[hex] = struct{}{}
	}
	assert.Len(t, fills, 4, "quadrant fills must be pairwise distinct")
	assert.NotEqual(t,
		slotFill(t, doc, "fill_1"),
		slotFill(t, doc, "fill_4"),
		"first and last quadrants must not share a color",
	)
}

func TestShippedHubSpokeUsesPrimaryAccent(t *testing.T) {
	lib := loadShipped(t)

	th, err := theme.Resolve(&theme.Spec{PrimaryColor: "#7C3AED"})
	require.NoError(t, err)

	svg, err := lib.Fill("hub_spoke_4", []string{"North", "East", "South", "West"}, th)
	require.NoError(t, err)

	assert.Equal(t, th.Primary, slotFill(t, svg.Body, "primary_fill"))
	assert.Equal(t, theme.ContrastTextHex(th.Primary), slotFill(t, svg.Body, "primary_text"))
	assert.Contains(t, svg.Body, ">North</text>")
	assert.Contains(t, svg.Body, ">West</text>")
}
