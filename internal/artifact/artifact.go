// Package artifact defines the generated diagram payloads that flow from
// generators through the cache and object store to the wire.
package artifact

// OutputType tags the artifact family reported in diagram responses.
type OutputType string

const (
	OutputSVG     OutputType = "svg"
	OutputMermaid OutputType = "mermaid"
	OutputChart   OutputType = "chart"
)

// Content types carried on the wire.
const (
	ContentTypeSVG     = "image/svg+xml"
	ContentTypeMermaid = "text/vnd.mermaid"
	ContentTypePNG     = "image/png"
	ContentTypePython  = "text/x-python"
)

// Artifact is a generated diagram in one of three families: a filled SVG
// template, a Mermaid document (rendered or raw DSL), or a chart (python
// source or executed image). Artifacts are immutable once built.
type Artifact interface {
	// Output reports the artifact family.
	Output() OutputType
	// ContentType reports the MIME type of Payload.
	ContentType() string
	// Payload is the inline body delivered to clients or uploaded.
	Payload() []byte
	// Size is the payload size in bytes, used for cache accounting.
	Size() int
}

// SVG is a filled template document.
type SVG struct {
	Body string
}

func (a *SVG) Output() OutputType  { return OutputSVG }
func (a *SVG) ContentType() string { return ContentTypeSVG }
func (a *SVG) Payload() []byte     { return []byte(a.Body) }
func (a *SVG) Size() int           { return len(a.Body) }

// Mermaid carries the DSL and, when the CLI renderer succeeded, the
// rendered SVG. An unrendered document is still a valid artifact; clients
// receive the DSL with content type text/vnd.mermaid.
type Mermaid struct {
	DSL         string
	RenderedSVG string
}

func (a *Mermaid) Output() OutputType { return OutputMermaid }

func (a *Mermaid) ContentType() string {
	if a.RenderedSVG != "" {
		return ContentTypeSVG
	}
	return ContentTypeMermaid
}

func (a *Mermaid) Payload() []byte {
	if a.RenderedSVG != "" {
		return []byte(a.RenderedSVG)
	}
	return []byte(a.DSL)
}

func (a *Mermaid) Size() int { return len(a.DSL) + len(a.RenderedSVG) }

// Rendered reports whether the CLI produced an SVG for this document.
func (a *Mermaid) Rendered() bool { return a.RenderedSVG != "" }

// Chart is either python source (code mode) or the bytes the sandboxed
// executor produced (image/svg+xml or image/png).
type Chart struct {
	Kind string // one of ContentTypeSVG, ContentTypePNG, ContentTypePython
	Body []byte
}

func (a *Chart) Output() OutputType  { return OutputChart }
func (a *Chart) ContentType() string { return a.Kind }
func (a *Chart) Payload() []byte     { return a.Body }
func (a *Chart) Size() int           { return len(a.Body) }

// Binary reports whether the payload must be base64-encoded for JSON
// delivery. Only executed PNG charts are binary; everything else is text.
func Binary(a Artifact) bool {
	return a.ContentType() == ContentTypePNG
}

// Ext returns the object store file extension for the artifact.
func Ext(a Artifact) string {
	switch a.ContentType() {
	case ContentTypeSVG:
		return "svg"
	case ContentTypeMermaid:
		return "mmd"
	case ContentTypePNG:
		return "png"
	case ContentTypePython:
		return "py"
	default:
		return "bin"
	}
}
