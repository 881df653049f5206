package protocol

import (
	"regexp"
	"slices"
	"strings"
)

// Kind is a diagram type tag from the closed supported set.
type Kind string

// Template-backed kinds. Each maps to a shipped SVG template of the same id.
const (
	KindMatrix2x2         Kind = "matrix_2x2"
	KindMatrix3x3         Kind = "matrix_3x3"
	KindSWOT              Kind = "swot"
	KindPyramid3          Kind = "pyramid_3"
	KindPyramid4          Kind = "pyramid_4"
	KindPyramid5          Kind = "pyramid_5"
	KindHubSpoke4         Kind = "hub_spoke_4"
	KindHubSpoke6         Kind = "hub_spoke_6"
	KindProcessFlow3      Kind = "process_flow_3"
	KindProcessFlow5      Kind = "process_flow_5"
	KindCycle3            Kind = "cycle_3"
	KindCycle4            Kind = "cycle_4"
	KindCycle5            Kind = "cycle_5"
	KindFunnel3           Kind = "funnel_3"
	KindFunnel4           Kind = "funnel_4"
	KindFunnel5           Kind = "funnel_5"
	KindVenn2             Kind = "venn_2"
	KindVenn3             Kind = "venn_3"
	KindHoneycomb3        Kind = "honeycomb_3"
	KindHoneycomb5        Kind = "honeycomb_5"
	KindHoneycomb7        Kind = "honeycomb_7"
	KindGears3            Kind = "gears_3"
	KindFishbone          Kind = "fishbone"
	KindTimeline          Kind = "timeline"
	KindRoadmapQuarterly4 Kind = "roadmap_quarterly_4"
)

// Mermaid-backed kinds.
const (
	KindFlowchart Kind = "flowchart"
	KindSequence  Kind = "sequence"
	KindGantt     Kind = "gantt"
	KindState     Kind = "state"
	KindJourney   Kind = "journey"
	KindMindMap   Kind = "mind_map"
)

// Chart-backed kinds.
const (
	KindPie       Kind = "pie"
	KindBar       Kind = "bar"
	KindLine      Kind = "line"
	KindScatter   Kind = "scatter"
	KindHistogram Kind = "histogram"
	KindHeatmap   Kind = "heatmap"
	KindArea      Kind = "area"
	KindWaterfall Kind = "waterfall"
	KindTreemap   Kind = "treemap"
)

// cardinalities records the exact data-point count a kind's tag implies.
// Kinds absent from the map accept any count at validation time; the
// template layer applies defaults and drops extras.
var cardinalities = map[Kind]int{
	KindMatrix2x2:         4,
	KindMatrix3x3:         9,
	KindSWOT:              4,
	KindPyramid3:          3,
	KindPyramid4:          4,
	KindPyramid5:          5,
	KindHubSpoke4:         4,
	KindHubSpoke6:         6,
	KindProcessFlow3:      3,
	KindProcessFlow5:      5,
	KindCycle3:            3,
	KindCycle4:            4,
	KindCycle5:            5,
	KindFunnel3:           3,
	KindFunnel4:           4,
	KindFunnel5:           5,
	KindVenn2:             2,
	KindVenn3:             3,
	KindHoneycomb3:        3,
	KindHoneycomb5:        5,
	KindHoneycomb7:        7,
	KindGears3:            3,
	KindRoadmapQuarterly4: 4,
}

var templateKinds = map[Kind]struct{}{
	KindMatrix2x2: {}, KindMatrix3x3: {}, KindSWOT: {},
	KindPyramid3: {}, KindPyramid4: {}, KindPyramid5: {},
	KindHubSpoke4: {}, KindHubSpoke6: {},
	KindProcessFlow3: {}, KindProcessFlow5: {},
	KindCycle3: {}, KindCycle4: {}, KindCycle5: {},
	KindFunnel3: {}, KindFunnel4: {}, KindFunnel5: {},
	KindVenn2: {}, KindVenn3: {},
	KindHoneycomb3: {}, KindHoneycomb5: {}, KindHoneycomb7: {},
	KindGears3: {}, KindFishbone: {}, KindTimeline: {}, KindRoadmapQuarterly4: {},
}

var mermaidKinds = map[Kind]struct{}{
	KindFlowchart: {}, KindSequence: {}, KindGantt: {},
	KindState: {}, KindJourney: {}, KindMindMap: {},
}

var chartKinds = map[Kind]struct{}{
	KindPie: {}, KindBar: {}, KindLine: {}, KindScatter: {},
	KindHistogram: {}, KindHeatmap: {}, KindArea: {},
	KindWaterfall: {}, KindTreemap: {},
}

// Clients often append a descriptive noun to numbered tags, e.g.
// "pyramid_3_level" or "venn_2_circle". One trailing noun after the
// numeral is stripped; nothing else is rewritten.
var trailingNoun = regexp.MustCompile(`^([a-z0-9]+(?:_[a-z0-9]+)*_[0-9]+)_(?:levels?|steps?|stages?|circles?|cells?|parts?|segments?)$`)

// NormalizeKind canonicalizes a client-supplied diagram type tag. Unknown
// tags stay unknown; normalization never invents membership.
func NormalizeKind(raw string) Kind {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.ReplaceAll(tag, "-", "_")
	tag = strings.ReplaceAll(tag, " ", "_")
	if m := trailingNoun.FindStringSubmatch(tag); m != nil {
		tag = m[1]
	}
	return Kind(tag)
}

// Known reports membership in the closed supported set.
func (k Kind) Known() bool {
	return k.IsTemplate() || k.IsMermaid() || k.IsChart()
}

// IsTemplate reports whether the kind renders through the SVG template
// library.
func (k Kind) IsTemplate() bool {
	_, ok := templateKinds[k]
	return ok
}

// IsMermaid reports whether the kind renders through Mermaid DSL.
func (k Kind) IsMermaid() bool {
	_, ok := mermaidKinds[k]
	return ok
}

// IsChart reports whether the kind renders through the programmatic chart
// path.
func (k Kind) IsChart() bool {
	_, ok := chartKinds[k]
	return ok
}

// Cardinality returns the exact data-point count the kind's tag implies,
// or exact=false when the kind accepts a variable count.
func (k Kind) Cardinality() (n int, exact bool) {
	n, exact = cardinalities[k]
	return n, exact
}

// Kinds returns the full supported set in stable sorted order, for the
// catalog listing and health reporting.
func Kinds() []Kind {
	all := make([]Kind, 0, len(templateKinds)+len(mermaidKinds)+len(chartKinds))
	for k := range templateKinds {
		all = append(all, k)
	}
	for k := range mermaidKinds {
		all = append(all, k)
	}
	for k := range chartKinds {
		all = append(all, k)
	}
	slices.Sort(all)
	return all
}
