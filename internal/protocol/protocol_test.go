package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

func TestNormalizeKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"pyramid_3", KindPyramid3},
		{"pyramid_3_level", KindPyramid3},
		{"pyramid_3_levels", KindPyramid3},
		{"PYRAMID_4_LEVEL", KindPyramid4},
		{"venn_2_circle", KindVenn2},
		{"honeycomb_5_cells", KindHoneycomb5},
		{"process_flow_3_steps", KindProcessFlow3},
		{"funnel_4_stage", KindFunnel4},
		{"matrix_2x2", KindMatrix2x2},
		{"hub-spoke-4", KindHubSpoke4},
		{"  flowchart  ", KindFlowchart},
		{"mind map", KindMindMap},
		{"roadmap_quarterly_4", KindRoadmapQuarterly4},
		// Normalization never invents membership.
		{"mandala", Kind("mandala")},
		{"pyramid_9_level", Kind("pyramid_9")},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKind(tt.input))
		})
	}
}

func TestKindClasses(t *testing.T) {
	assert.True(t, KindMatrix2x2.IsTemplate())
	assert.True(t, KindFishbone.IsTemplate())
	assert.True(t, KindFlowchart.IsMermaid())
	assert.True(t, KindMindMap.IsMermaid())
	assert.True(t, KindPie.IsChart())
	assert.True(t, KindTreemap.IsChart())

	assert.False(t, KindFlowchart.IsTemplate())
	assert.False(t, KindPie.IsMermaid())
	assert.False(t, Kind("mandala").Known())
}

func TestKindCardinality(t *testing.T) {
	tests := []struct {
		kind  Kind
		n     int
		exact bool
	}{
		{KindMatrix2x2, 4, true},
		{KindMatrix3x3, 9, true},
		{KindSWOT, 4, true},
		{KindPyramid5, 5, true},
		{KindHoneycomb7, 7, true},
		{KindRoadmapQuarterly4, 4, true},
		{KindFishbone, 0, false},
		{KindTimeline, 0, false},
		{KindFlowchart, 0, false},
		{KindPie, 0, false},
	}
	for _, tt := range tests {
		n, exact := tt.kind.Cardinality()
		assert.Equal(t, tt.n, n, "kind %s", tt.kind)
		assert.Equal(t, tt.exact, exact, "kind %s", tt.kind)
	}
}

func TestKindsCatalog(t *testing.T) {
	all := Kinds()
	assert.Len(t, all, 40)

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i], "catalog must be sorted")
	}
	for _, k := range all {
		assert.True(t, k.Known())
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePing, env.Type)

	_, err = ParseEnvelope([]byte(`{not json`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{"request_id":"r1"}`))
	assert.Error(t, err)

	env, err = ParseEnvelope([]byte(`{"type":"telemetry"}`))
	require.NoError(t, err)
	assert.False(t, KnownType(env.Type))
}

func TestValidateEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		env      ClientEnvelope
		wantCode errors.Code
	}{
		{
			name: "valid request",
			env:  ClientEnvelope{Type: TypeDiagramRequest, RequestID: "r1", Data: json.RawMessage(`{}`)},
		},
		{
			name:     "request without id",
			env:      ClientEnvelope{Type: TypeDiagramRequest, Data: json.RawMessage(`{}`)},
			wantCode: errors.CodeValidation,
		},
		{
			name:     "request without data",
			env:      ClientEnvelope{Type: TypeDiagramRequest, RequestID: "r1"},
			wantCode: errors.CodeValidation,
		},
		{
			name:     "cancel without id",
			env:      ClientEnvelope{Type: TypeCancel},
			wantCode: errors.CodeValidation,
		},
		{
			name: "ping",
			env:  ClientEnvelope{Type: TypePing},
		},
		{
			name:     "unknown type",
			env:      ClientEnvelope{Type: "telemetry"},
			wantCode: errors.CodeValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvelope(&tt.env)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}

func validPyramidRequest() *RequestData {
	return &RequestData{
		DiagramType: "pyramid_3_level",
		DataPoints: []DataPoint{
			{Label: "Executive"},
			{Label: "Management"},
			{Label: "Operations"},
		},
		Theme: &theme.Spec{PrimaryColor: "#7C3AED", Scheme: theme.SchemeMonochromatic},
	}
}

func TestValidateRequest(t *testing.T) {
	value := func(v float64) *float64 { return &v }

	t.Run("valid pyramid with alias", func(t *testing.T) {
		assert.NoError(t, ValidateRequest(validPyramidRequest()))
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := ValidateRequest(&RequestData{DiagramType: "mandala"})
		require.Error(t, err)
		assert.Equal(t, errors.CodeUnsupportedDiagramKind, errors.CodeOf(err))
	})

	t.Run("missing diagram type", func(t *testing.T) {
		err := ValidateRequest(&RequestData{})
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
	})

	t.Run("cardinality mismatch", func(t *testing.T) {
		err := ValidateRequest(&RequestData{
			DiagramType: "matrix_2x2",
			DataPoints:  []DataPoint{{Label: "Q1"}, {Label: "Q2"}, {Label: "Q3"}},
		})
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "exactly 4")
	})

	t.Run("blank template label", func(t *testing.T) {
		req := validPyramidRequest()
		req.DataPoints[1].Label = "  "
		err := ValidateRequest(req)
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
	})

	t.Run("chart requires values", func(t *testing.T) {
		err := ValidateRequest(&RequestData{
			DiagramType: "pie",
			DataPoints:  []DataPoint{{Label: "A", Value: value(1)}, {Label: "B"}},
		})
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
	})

	t.Run("chart ok", func(t *testing.T) {
		err := ValidateRequest(&RequestData{
			DiagramType: "bar",
			DataPoints:  []DataPoint{{Label: "A", Value: value(3)}, {Label: "B", Value: value(5)}},
		})
		assert.NoError(t, err)
	})

	t.Run("mermaid requires content or points", func(t *testing.T) {
		err := ValidateRequest(&RequestData{DiagramType: "flowchart"})
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))

		assert.NoError(t, ValidateRequest(&RequestData{
			DiagramType: "flowchart",
			Content:     "Start -> Validate -> End",
		}))
	})

	t.Run("bad theme color", func(t *testing.T) {
		req := validPyramidRequest()
		req.Theme.PrimaryColor = "purple"
		err := ValidateRequest(req)
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
	})

	t.Run("bad scheme", func(t *testing.T) {
		req := validPyramidRequest()
		req.Theme.Scheme = "triadic"
		err := ValidateRequest(req)
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
	})
}

func TestEnvelopeShapes(t *testing.T) {
	t.Run("status update", func(t *testing.T) {
		env := NewStatusUpdateWithProgress("r1", 2, StatusGenerating, "working", 40)
		raw, err := json.Marshal(env)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "status_update", decoded["type"])
		assert.Equal(t, "r1", decoded["request_id"])
		assert.Equal(t, float64(2), decoded["seq"])

		data := decoded["data"].(map[string]any)
		assert.Equal(t, "generating", data["status"])
		assert.Equal(t, float64(40), data["progress"])
	})

	t.Run("error carries seq", func(t *testing.T) {
		env := NewError("r1", 3, string(errors.CodeValidation), "bad request", "details")
		raw, err := json.Marshal(env)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, "error", decoded["type"])
		assert.Equal(t, float64(3), decoded["seq"])

		data := decoded["data"].(map[string]any)
		assert.Equal(t, "ValidationError", data["code"])
	})

	t.Run("pong omits seq and request id", func(t *testing.T) {
		raw, err := json.Marshal(NewPong())
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"pong"}`, string(raw))
	})

	t.Run("diagram response round trip", func(t *testing.T) {
		resolved, err := theme.Resolve(nil)
		require.NoError(t, err)

		env := NewDiagramResponse("r9", 4, DiagramResponseData{
			Status:      ResultSuccess,
			DiagramType: "pyramid_3",
			OutputType:  "svg",
			Content:     "<svg/>",
			ContentType: "image/svg+xml",
			Metadata: &ResponseMetadata{
				GenerationMethod: "svg_template",
				CacheHit:         true,
				ThemeApplied:     &resolved,
				GenerationTimeMS: 12,
			},
		})
		raw, err := json.Marshal(env)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		data := decoded["data"].(map[string]any)
		assert.Equal(t, "success", data["status"])
		meta := data["metadata"].(map[string]any)
		assert.Equal(t, true, meta["cache_hit"])
		assert.Equal(t, "svg_template", meta["generation_method"])
	})
}

func TestDecodeRequestData(t *testing.T) {
	env := &ClientEnvelope{
		Type:      TypeDiagramRequest,
		RequestID: "r1",
		Data:      json.RawMessage(`{"diagram_type":"cycle_3","data_points":[{"label":"Plan"},{"label":"Do"},{"label":"Check"}]}`),
	}
	data, err := DecodeRequestData(env)
	require.NoError(t, err)
	assert.Equal(t, KindCycle3, data.Kind())
	assert.Equal(t, []string{"Plan", "Do", "Check"}, data.Labels())

	_, err = DecodeRequestData(&ClientEnvelope{Type: TypeDiagramRequest})
	assert.Error(t, err)

	_, err = DecodeRequestData(&ClientEnvelope{Type: TypeDiagramRequest, Data: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}
