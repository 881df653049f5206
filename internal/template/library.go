// Package template loads the shipped SVG template library and fills
// template slots with request labels and theme-derived colors. Templates
// are read-only after load; every Fill produces a fresh document.
package template

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
)

var (
	// ErrNotFound reports a fill against an id the library never loaded.
	ErrNotFound = errors.New("template not found")
	// ErrMalformed reports an unusable manifest or SVG body; fatal at startup.
	ErrMalformed = errors.New("malformed template")
	// ErrSlotCount reports a fill whose palette cannot cover the
	// template's fill slots.
	ErrSlotCount = errors.New("invalid slot count")
)

// ManifestFile is the library index inside the template directory.
const ManifestFile = "manifest.yaml"

type manifest struct {
	Templates []manifestEntry `yaml:"templates"`
}

type manifestEntry struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	File      string `yaml:"file"`
	TextSlots int    `yaml:"text_slots"`
	FillSlots int    `yaml:"fill_slots"`
}

// Template is one loaded SVG with declared slot arities.
type Template struct {
	ID        string
	Name      string
	File      string
	TextSlots int
	FillSlots int

	body string
}

// Body returns the pristine SVG document.
func (t *Template) Body() string { return t.body }

// Library is the immutable set of loaded templates.
type Library struct {
	templates map[string]*Template
	ids       []string
}

// Load reads manifest.yaml plus every listed SVG from dir and validates
// each body: well-formed XML and exactly one element per declared slot.
// Any defect fails the whole load; a partially usable library would turn
// startup mistakes into per-request surprises.
func Load(dir string, logger *observability.Logger) (*Library, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	manifestPath := filepath.Join(dir, ManifestFile)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformed, manifestPath, err)
	}

	var m manifest
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformed, manifestPath, err)
	}
	if len(m.Templates) == 0 {
		return nil, fmt.Errorf("%w: %s lists no templates", ErrMalformed, manifestPath)
	}

	lib := &Library{templates: make(map[string]*Template, len(m.Templates))}
	for _, entry := range m.Templates {
		if entry.ID == "" || entry.File == "" {
			return nil, fmt.Errorf("%w: manifest entry needs id and file", ErrMalformed)
		}
		if _, dup := lib.templates[entry.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrMalformed, entry.ID)
		}

		body, err := os.ReadFile(filepath.Join(dir, entry.File))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformed, entry.File, err)
		}
		tpl := &Template{
			ID:        entry.ID,
			Name:      entry.Name,
			File:      entry.File,
			TextSlots: entry.TextSlots,
			FillSlots: entry.FillSlots,
			body:      string(body),
		}
		if err := validateBody(tpl); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, entry.File, err)
		}
		lib.templates[entry.ID] = tpl
		lib.ids = append(lib.ids, entry.ID)
	}
	sort.Strings(lib.ids)

	logger.Info("template library loaded", "dir", dir, "templates", len(lib.ids))
	return lib, nil
}

// validateBody checks XML well-formedness and that each declared slot id
// appears exactly once.
func validateBody(tpl *Template) error {
	decoder := xml.NewDecoder(strings.NewReader(tpl.body))
	for {
		if _, err := decoder.Token(); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("not well-formed: %v", err)
		}
	}

	for i := 1; i <= tpl.TextSlots; i++ {
		if err := requireSlot(tpl.body, fmt.Sprintf("text_%d", i)); err != nil {
			return err
		}
	}
	for i := 1; i <= tpl.FillSlots; i++ {
		if err := requireSlot(tpl.body, fmt.Sprintf("fill_%d", i)); err != nil {
			return err
		}
	}
	return nil
}

func requireSlot(body, slot string) error {
	occurrences := strings.Count(body, fmt.Sprintf("data-slot=%q", slot)) +
		strings.Count(body, fmt.Sprintf("id=%q", slot))
	switch occurrences {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("missing slot %s", slot)
	default:
		return fmt.Errorf("slot %s declared %d times", slot, occurrences)
	}
}

// Get returns the template for id.
func (l *Library) Get(id string) (*Template, error) {
	tpl, ok := l.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tpl, nil
}

// Has reports whether id is loaded.
func (l *Library) Has(id string) bool {
	_, ok := l.templates[id]
	return ok
}

// IDs returns the loaded template ids in sorted order.
func (l *Library) IDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Len returns the number of loaded templates.
func (l *Library) Len() int { return len(l.templates) }
