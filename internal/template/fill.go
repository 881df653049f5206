package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

var (
	titlePattern  = regexp.MustCompile(`(?s)<title\b[^>]*>.*?</title>\s*|<title\b[^>]*/>\s*`)
	fillAttrRe    = regexp.MustCompile(`\bfill="[^"]*"`)
	strokeAttrRe  = regexp.MustCompile(`\bstroke="[^"]*"`)
	escapeLabeler = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
)

// Fill renders the template with the request labels and the resolved
// theme. Fill colors are keyed by the element-specific slot id, never by
// document order, so sibling slots can never collapse onto one color.
// Missing labels keep the template defaults; extra labels are ignored.
func (l *Library) Fill(id string, labels []string, th theme.Resolved) (*artifact.SVG, error) {
	tpl, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	palette := th.SlotPalette(tpl.FillSlots)
	return fillDocument(tpl, fillSpec{
		labels:     labels,
		palette:    palette,
		primary:    th.Primary,
		background: th.Background,
		text:       th.Text,
		smart:      th.SmartTheming,
	})
}

// FillPalette renders with an explicit palette, bypassing theme
// resolution. The palette must cover the template's fill slots.
func (l *Library) FillPalette(id string, labels, palette []string, smart bool) (*artifact.SVG, error) {
	tpl, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if tpl.FillSlots > 0 && len(palette) == 0 {
		return nil, fmt.Errorf("%w: %s has %d fill slots but palette is empty", ErrSlotCount, id, tpl.FillSlots)
	}
	spec := fillSpec{labels: labels, palette: palette, smart: smart}
	if len(palette) > 0 {
		spec.primary = palette[0]
	}
	return fillDocument(tpl, spec)
}

type fillSpec struct {
	labels     []string
	palette    []string
	primary    string
	background string
	text       string
	smart      bool
}

func fillDocument(tpl *Template, spec fillSpec) (*artifact.SVG, error) {
	doc := tpl.Body()

	if spec.smart {
		doc = titlePattern.ReplaceAllString(doc, "")
	}
	if spec.background != "" {
		doc = updateSlotTag(doc, "canvas", func(tag string) string {
			return setAttr(tag, fillAttrRe, "fill", spec.background)
		})
	}

	// Fill slots first so text contrast sees final colors.
	for i := 1; i <= tpl.FillSlots; i++ {
		color := spec.colorFor(i)
		if color == "" {
			continue
		}
		doc = updateSlotTag(doc, fmt.Sprintf("fill_%d", i), func(tag string) string {
			tag = setAttr(tag, fillAttrRe, "fill", color)
			if spec.smart {
				tag = setAttr(tag, strokeAttrRe, "stroke", color)
			}
			return tag
		})
	}

	if spec.primary != "" {
		doc = updateSlotTag(doc, "primary_fill", func(tag string) string {
			tag = setAttr(tag, fillAttrRe, "fill", spec.primary)
			if spec.smart {
				tag = setAttr(tag, strokeAttrRe, "stroke", spec.primary)
			}
			return tag
		})
		doc = updateSlotTag(doc, "primary_text", func(tag string) string {
			return setAttr(tag, fillAttrRe, "fill", theme.ContrastTextHex(spec.primary))
		})
	}

	for i := 1; i <= tpl.TextSlots; i++ {
		slot := fmt.Sprintf("text_%d", i)
		textColor := spec.text
		if i <= tpl.FillSlots {
			if c := spec.colorFor(i); c != "" {
				textColor = theme.ContrastTextHex(c)
			}
		}
		if textColor != "" {
			doc = updateSlotTag(doc, slot, func(tag string) string {
				return setAttr(tag, fillAttrRe, "fill", textColor)
			})
		}
		if i <= len(spec.labels) {
			doc = setTextContent(doc, slot, spec.labels[i-1])
		}
	}

	return &artifact.SVG{Body: doc}, nil
}

func (s fillSpec) colorFor(slot int) string {
	if len(s.palette) == 0 {
		return ""
	}
	return s.palette[(slot-1)%len(s.palette)]
}

// updateSlotTag rewrites the single opening tag carrying the slot id,
// matched by data-slot or the legacy element id.
func updateSlotTag(doc, slot string, update func(tag string) string) string {
	re := slotTagPattern(slot)
	return re.ReplaceAllStringFunc(doc, update)
}

func slotTagPattern(slot string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(slot)
	return regexp.MustCompile(`<[a-zA-Z][^>]*\b(?:data-slot|id)="` + quoted + `"[^>]*>`)
}

// setAttr replaces the attribute value in an opening tag, adding the
// attribute when the template omitted it.
func setAttr(tag string, attrRe *regexp.Regexp, attr, value string) string {
	replacement := attr + `="` + value + `"`
	if attrRe.MatchString(tag) {
		return attrRe.ReplaceAllLiteralString(tag, replacement)
	}
	if strings.HasSuffix(tag, "/>") {
		return tag[:len(tag)-2] + " " + replacement + "/>"
	}
	return tag[:len(tag)-1] + " " + replacement + ">"
}

// setTextContent swaps the inner text of the slot's <text> element for an
// escaped label.
func setTextContent(doc, slot, label string) string {
	quoted := regexp.QuoteMeta(slot)
	re := regexp.MustCompile(`<text\b[^>]*\b(?:data-slot|id)="` + quoted + `"[^>]*>`)
	loc := re.FindStringIndex(doc)
	if loc == nil {
		return doc
	}
	closeOffset := strings.Index(doc[loc[1]:], "</text>")
	if closeOffset < 0 {
		return doc
	}
	return doc[:loc[1]] + escapeLabeler.Replace(label) + doc[loc[1]+closeOffset:]
}
