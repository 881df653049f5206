// Package chart emits matplotlib source per chart kind and, when the
// sandboxed executor is configured, runs it to capture the rendered image.
// Code mode is the default contract: the response carries reproducible
// python source and the client decides whether to execute it.
package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

const (
	defaultWidthPx  = 800
	defaultHeightPx = 600
	minSidePx       = 160
	maxSidePx       = 4000
	renderDPI       = 100
)

// Params carries the presentation knobs embedded into the source.
type Params struct {
	Title  string
	Colors []string
	Width  int
	Height int
}

// BuildSource renders python for the kind with all data embedded as
// literals. The script selects the Agg backend before any pyplot import and
// writes SVG to stdout, so it runs headless and pipes cleanly.
func BuildSource(kind protocol.Kind, params Params, points []protocol.DataPoint) (string, error) {
	if !kind.IsChart() {
		return "", diagramerrors.NewUnsupportedDiagramKind(string(kind))
	}

	labels, values := seriesFrom(points)

	var b strings.Builder
	b.WriteString("import matplotlib\n")
	b.WriteString("matplotlib.use(\"Agg\")\n")
	b.WriteString("import matplotlib.pyplot as plt\n")
	b.WriteString("import sys\n\n")

	fmt.Fprintf(&b, "labels = %s\n", pyStringList(labels))
	fmt.Fprintf(&b, "values = %s\n", pyFloatList(values))
	fmt.Fprintf(&b, "colors = %s\n\n", pyStringList(params.Colors))

	w, h := figSize(params)
	fmt.Fprintf(&b, "fig, ax = plt.subplots(figsize=(%s, %s))\n", pyFloat(w), pyFloat(h))

	switch kind {
	case protocol.KindPie:
		writePie(&b)
	case protocol.KindBar:
		writeBar(&b)
	case protocol.KindLine:
		writeLine(&b)
	case protocol.KindScatter:
		writeScatter(&b)
	case protocol.KindHistogram:
		writeHistogram(&b, len(values))
	case protocol.KindHeatmap:
		writeHeatmap(&b, values)
	case protocol.KindArea:
		writeArea(&b)
	case protocol.KindWaterfall:
		writeWaterfall(&b)
	case protocol.KindTreemap:
		writeTreemap(&b)
	}

	if title := strings.TrimSpace(params.Title); title != "" {
		fmt.Fprintf(&b, "ax.set_title(%s)\n", pyString(title))
	}
	b.WriteString("fig.tight_layout()\n")
	b.WriteString("plt.savefig(sys.stdout.buffer, format=\"svg\")\n")
	return b.String(), nil
}

func writePie(b *strings.Builder) {
	b.WriteString(`values = [abs(v) for v in values]
ax.pie(values, labels=labels, colors=colors or None, autopct="%1.1f%%", startangle=90)
ax.axis("equal")
`)
}

func writeBar(b *strings.Builder) {
	b.WriteString(`ax.bar(labels, values, color=colors or None)
ax.set_ylabel("Value")
plt.setp(ax.get_xticklabels(), rotation=30, ha="right")
`)
}

func writeLine(b *strings.Builder) {
	b.WriteString(`xs = range(len(values))
ax.plot(xs, values, marker="o", color=colors[0] if colors else None)
ax.set_xticks(xs)
ax.set_xticklabels(labels, rotation=30, ha="right")
ax.grid(True, alpha=0.3)
`)
}

func writeScatter(b *strings.Builder) {
	b.WriteString(`xs = range(len(values))
ax.scatter(xs, values, color=colors[0] if colors else None)
ax.set_xticks(xs)
ax.set_xticklabels(labels, rotation=30, ha="right")
ax.grid(True, alpha=0.3)
`)
}

func writeHistogram(b *strings.Builder, n int) {
	bins := n
	if bins > 10 {
		bins = 10
	}
	if bins < 3 {
		bins = 3
	}
	fmt.Fprintf(b, `ax.hist(values, bins=%d, color=colors[0] if colors else None, edgecolor="white")
ax.set_ylabel("Frequency")
`, bins)
}

// writeHeatmap lays values out row-major on a near-square grid, padding the
// tail with zeros. The grid is computed here so the script stays a straight
// sequence of literals.
func writeHeatmap(b *strings.Builder, values []float64) {
	n := len(values)
	if n == 0 {
		n = 1
		values = []float64{0}
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	b.WriteString("grid = [")
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		row := make([]float64, cols)
		for c := 0; c < cols; c++ {
			if i := r*cols + c; i < len(values) {
				row[c] = values[i]
			}
		}
		b.WriteString(pyFloatList(row))
	}
	b.WriteString("]\n")
	b.WriteString(`im = ax.imshow(grid, cmap="viridis")
fig.colorbar(im, ax=ax)
`)
}

func writeArea(b *strings.Builder) {
	b.WriteString(`xs = range(len(values))
ax.fill_between(xs, values, alpha=0.4, color=colors[0] if colors else None)
ax.plot(xs, values, color=colors[0] if colors else None)
ax.set_xticks(xs)
ax.set_xticklabels(labels, rotation=30, ha="right")
`)
}

func writeWaterfall(b *strings.Builder) {
	b.WriteString(`bottoms = []
running = 0.0
for v in values:
    bottoms.append(running)
    running += v
pos = colors[0] if len(colors) > 0 else "#2ca02c"
neg = colors[1] if len(colors) > 1 else "#d62728"
bar_colors = [pos if v >= 0 else neg for v in values]
ax.bar(labels, values, bottom=bottoms, color=bar_colors)
ax.axhline(0, color="#333333", linewidth=0.8)
plt.setp(ax.get_xticklabels(), rotation=30, ha="right")
`)
}

// writeTreemap emits an inline slice-and-dice layout: each value claims a
// fraction of the remaining rectangle, splitting along its longer side.
func writeTreemap(b *strings.Builder) {
	b.WriteString(`values = [abs(v) for v in values]
rects = []
x, y, w, h = 0.0, 0.0, 1.0, 1.0
remaining = sum(values)
for v in values:
    if remaining <= 0:
        break
    frac = v / remaining
    if w >= h:
        rects.append((x, y, w * frac, h))
        x += w * frac
        w -= w * frac
    else:
        rects.append((x, y, w, h * frac))
        y += h * frac
        h -= h * frac
    remaining -= v
for i, (rect, label) in enumerate(zip(rects, labels)):
    rx, ry, rw, rh = rect
    fc = colors[i % len(colors)] if colors else plt.get_cmap("tab20")(i % 20)
    ax.add_patch(plt.Rectangle((rx, ry), rw, rh, facecolor=fc, edgecolor="white"))
    if rw > 0.05 and rh > 0.05:
        ax.text(rx + rw / 2, ry + rh / 2, label, ha="center", va="center", fontsize=9)
ax.set_xlim(0, 1)
ax.set_ylim(0, 1)
ax.axis("off")
`)
}

// seriesFrom flattens points into parallel label and value literals.
// Validation upstream requires a value on every chart point; a nil value
// here becomes zero rather than a crash.
func seriesFrom(points []protocol.DataPoint) ([]string, []float64) {
	labels := make([]string, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		label := strings.TrimSpace(p.Label)
		if label == "" {
			label = fmt.Sprintf("Series %d", i+1)
		}
		labels[i] = label
		if p.Value != nil {
			values[i] = *p.Value
		}
	}
	return labels, values
}

func figSize(params Params) (float64, float64) {
	w := params.Width
	if w <= 0 {
		w = defaultWidthPx
	}
	h := params.Height
	if h <= 0 {
		h = defaultHeightPx
	}
	return float64(clampSide(w)) / renderDPI, float64(clampSide(h)) / renderDPI
}

func clampSide(px int) int {
	if px < minSidePx {
		return minSidePx
	}
	if px > maxSidePx {
		return maxSidePx
	}
	return px
}

// pyString renders a double-quoted python string literal.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func pyStringList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = pyString(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func pyFloatList(values []float64) string {
	if len(values) == 0 {
		return "[]"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = pyFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
