package mermaid

import (
	"fmt"
	"math"
	"strings"

	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

const indent = "    "

// ganttEpoch anchors generated schedules so the same input always yields
// the same document (and the same cache key).
const ganttEpoch = "2024-01-01"

// declarations maps the native mermaid kinds to their document headers.
var declarations = map[protocol.Kind]string{
	protocol.KindFlowchart: "flowchart",
	protocol.KindSequence:  "sequenceDiagram",
	protocol.KindGantt:     "gantt",
	protocol.KindState:     "stateDiagram-v2",
	protocol.KindJourney:   "journey",
	protocol.KindMindMap:   "mindmap",
}

// Template kinds degrade to a generic shape when the router falls back to
// this strategy: ordered kinds become a flowchart chain, cyclic kinds close
// the chain into a loop, grouping kinds become a mindmap.
var (
	sequentialKinds = map[protocol.Kind]bool{
		protocol.KindPyramid3:          true,
		protocol.KindPyramid4:          true,
		protocol.KindPyramid5:          true,
		protocol.KindFunnel3:           true,
		protocol.KindFunnel4:           true,
		protocol.KindFunnel5:           true,
		protocol.KindProcessFlow3:      true,
		protocol.KindProcessFlow5:      true,
		protocol.KindTimeline:          true,
		protocol.KindRoadmapQuarterly4: true,
	}
	cyclicKinds = map[protocol.Kind]bool{
		protocol.KindCycle3: true,
		protocol.KindCycle4: true,
		protocol.KindCycle5: true,
	}
	radialKinds = map[protocol.Kind]bool{
		protocol.KindMatrix2x2:  true,
		protocol.KindMatrix3x3:  true,
		protocol.KindSWOT:       true,
		protocol.KindVenn2:      true,
		protocol.KindVenn3:      true,
		protocol.KindHoneycomb3: true,
		protocol.KindHoneycomb5: true,
		protocol.KindHoneycomb7: true,
		protocol.KindHubSpoke4:  true,
		protocol.KindHubSpoke6:  true,
		protocol.KindGears3:     true,
		protocol.KindFishbone:   true,
	}
)

// Declaration returns the header the generated document must open with.
// Native kinds get their own declaration; template kinds get the header of
// the shape they degrade to. Chart kinds are not expressible here.
func Declaration(kind protocol.Kind) (string, bool) {
	if decl, ok := declarations[kind]; ok {
		return decl, true
	}
	if sequentialKinds[kind] || cyclicKinds[kind] {
		return "flowchart", true
	}
	if radialKinds[kind] {
		return "mindmap", true
	}
	return "", false
}

// Supports reports whether this strategy can produce a document for kind.
func Supports(kind protocol.Kind) bool {
	_, ok := Declaration(kind)
	return ok
}

// BuildDSL produces a deterministic document for the kind. Data points are
// consumed positionally; with no points the builders fall back to entities
// and relations mined from content.
func BuildDSL(kind protocol.Kind, content string, points []protocol.DataPoint) (string, error) {
	switch {
	case kind == protocol.KindFlowchart:
		return buildFlowchart(content, points, false), nil
	case kind == protocol.KindSequence:
		return buildSequence(content, points), nil
	case kind == protocol.KindGantt:
		return buildGantt(content, points), nil
	case kind == protocol.KindState:
		return buildState(content, points), nil
	case kind == protocol.KindJourney:
		return buildJourney(content, points), nil
	case kind == protocol.KindMindMap, radialKinds[kind]:
		return buildMindmap(content, points), nil
	case cyclicKinds[kind]:
		return buildFlowchart(content, points, true), nil
	case sequentialKinds[kind]:
		return buildFlowchart(content, points, false), nil
	default:
		return "", diagramerrors.NewUnsupportedDiagramKind(string(kind))
	}
}

func buildFlowchart(content string, points []protocol.DataPoint, closed bool) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	labels := stepLabels(points)
	if len(labels) == 0 {
		ex := Extract(content)
		if len(ex.Relations) > 0 {
			writeRelationEdges(&b, ex.Relations)
			return b.String()
		}
		labels = ex.Entities
	}
	if len(labels) == 0 {
		labels = []string{titleFrom(content, "Start")}
	}

	ids := make([]string, len(labels))
	for i, label := range labels {
		ids[i] = fmt.Sprintf("N%d", i+1)
		fmt.Fprintf(&b, "%s%s[\"%s\"]\n", indent, ids[i], escapeNodeText(label))
	}
	for i := 0; i+1 < len(ids); i++ {
		fmt.Fprintf(&b, "%s%s --> %s\n", indent, ids[i], ids[i+1])
	}
	if closed && len(ids) > 1 {
		fmt.Fprintf(&b, "%s%s --> %s\n", indent, ids[len(ids)-1], ids[0])
	}
	return b.String()
}

func writeRelationEdges(b *strings.Builder, relations []Relation) {
	ids := make(map[string]string)
	idOf := func(name string) string {
		key := strings.ToLower(name)
		if id, ok := ids[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", len(ids)+1)
		ids[key] = id
		fmt.Fprintf(b, "%s%s[\"%s\"]\n", indent, id, escapeNodeText(name))
		return id
	}
	for _, rel := range relations {
		from := idOf(rel.From)
		to := idOf(rel.To)
		fmt.Fprintf(b, "%s%s --> %s\n", indent, from, to)
	}
}

func buildSequence(content string, points []protocol.DataPoint) string {
	var b strings.Builder
	b.WriteString("sequenceDiagram\n")

	labels := stepLabels(points)
	if len(labels) == 0 {
		labels = Extract(content).Entities
	}
	if len(labels) == 0 {
		labels = []string{"Client", "Service"}
	}
	if len(labels) == 1 {
		labels = append(labels, "Service")
	}

	for i, label := range labels {
		fmt.Fprintf(&b, "%sparticipant P%d as %s\n", indent, i+1, escapeLine(label))
	}
	for i := 0; i+1 < len(labels); i++ {
		msg := ""
		if i+1 < len(points) {
			msg = strings.TrimSpace(points[i+1].Description)
		}
		if msg == "" {
			msg = labels[i+1]
		}
		fmt.Fprintf(&b, "%sP%d->>P%d: %s\n", indent, i+1, i+2, escapeLine(msg))
	}
	return b.String()
}

func buildGantt(content string, points []protocol.DataPoint) string {
	var b strings.Builder
	b.WriteString("gantt\n")
	fmt.Fprintf(&b, "%stitle %s\n", indent, escapeLine(titleFrom(content, "Timeline")))
	fmt.Fprintf(&b, "%sdateFormat YYYY-MM-DD\n", indent)
	fmt.Fprintf(&b, "%ssection Plan\n", indent)

	labels := stepLabels(points)
	if len(labels) == 0 {
		labels = Extract(content).Entities
	}
	if len(labels) == 0 {
		labels = []string{titleFrom(content, "Milestone")}
	}

	for i, label := range labels {
		days := 7
		if i < len(points) && points[i].Value != nil {
			if d := int(math.Round(*points[i].Value)); d >= 1 {
				days = d
			}
		}
		name := escapeTaskName(label)
		if i == 0 {
			fmt.Fprintf(&b, "%s%s :t1, %s, %dd\n", indent, name, ganttEpoch, days)
		} else {
			fmt.Fprintf(&b, "%s%s :t%d, after t%d, %dd\n", indent, name, i+1, i, days)
		}
	}
	return b.String()
}

func buildState(content string, points []protocol.DataPoint) string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")

	labels := stepLabels(points)
	if len(labels) == 0 {
		labels = Extract(content).Entities
	}
	if len(labels) == 0 {
		labels = []string{titleFrom(content, "Active")}
	}

	for i, label := range labels {
		fmt.Fprintf(&b, "%sstate \"%s\" as S%d\n", indent, escapeNodeText(label), i+1)
	}
	fmt.Fprintf(&b, "%s[*] --> S1\n", indent)
	for i := 0; i+1 < len(labels); i++ {
		fmt.Fprintf(&b, "%sS%d --> S%d\n", indent, i+1, i+2)
	}
	fmt.Fprintf(&b, "%sS%d --> [*]\n", indent, len(labels))
	return b.String()
}

func buildJourney(content string, points []protocol.DataPoint) string {
	var b strings.Builder
	b.WriteString("journey\n")
	fmt.Fprintf(&b, "%stitle %s\n", indent, escapeLine(titleFrom(content, "User Journey")))
	fmt.Fprintf(&b, "%ssection Experience\n", indent)

	labels := stepLabels(points)
	if len(labels) == 0 {
		labels = Extract(content).Entities
	}
	if len(labels) == 0 {
		labels = []string{titleFrom(content, "Visit")}
	}

	for i, label := range labels {
		score := 3
		if i < len(points) && points[i].Value != nil {
			score = clampScore(int(math.Round(*points[i].Value)))
		}
		fmt.Fprintf(&b, "%s%s%s: %d: User\n", indent, indent, escapeTaskName(label), score)
	}
	return b.String()
}

func buildMindmap(content string, points []protocol.DataPoint) string {
	var b strings.Builder
	b.WriteString("mindmap\n")
	fmt.Fprintf(&b, "%sroot((%s))\n", indent, escapeMindmapNode(titleFrom(content, "Overview")))

	labels := stepLabels(points)
	if len(labels) == 0 {
		labels = Extract(content).Entities
	}
	for _, label := range labels {
		fmt.Fprintf(&b, "%s%s%s\n", indent, indent, escapeMindmapNode(label))
	}
	return b.String()
}

// stepLabels returns one label per point, synthesizing names for blanks so
// positions stay aligned with values and descriptions.
func stepLabels(points []protocol.DataPoint) []string {
	if len(points) == 0 {
		return nil
	}
	labels := make([]string, len(points))
	for i, p := range points {
		label := strings.TrimSpace(p.Label)
		if label == "" {
			label = fmt.Sprintf("Step %d", i+1)
		}
		labels[i] = label
	}
	return labels
}

// titleFrom takes the first non-blank line of content, or fallback.
func titleFrom(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		if title := normalizePhrase(line); title != "" {
			return title
		}
	}
	return fallback
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}

// escapeNodeText keeps quoted node labels parseable.
func escapeNodeText(s string) string {
	return strings.ReplaceAll(escapeLine(s), `"`, "'")
}

// escapeLine collapses whitespace so a label cannot break out of its line.
func escapeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// escapeTaskName strips colons, the field separator in gantt and journey
// task lines.
func escapeTaskName(s string) string {
	return strings.ReplaceAll(escapeLine(s), ":", "-")
}

// escapeMindmapNode strips parentheses, which delimit node shapes.
func escapeMindmapNode(s string) string {
	s = escapeLine(s)
	s = strings.ReplaceAll(s, "(", "")
	return strings.ReplaceAll(s, ")", "")
}
