package mermaid

import (
	"context"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	diagramerrors "github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/llm"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// Generator produces Mermaid documents for one diagram kind at a time. An
// LLM draft is attempted first when an endpoint is configured and the
// request carries prose; the deterministic builders are both the no-LLM
// path and the fallback for rejected drafts, so generation only fails for
// kinds with no mermaid form at all.
type Generator struct {
	llm    *llm.Client
	logger logging.Logger
}

// NewGenerator builds a generator. client may be nil or disabled; the
// builders then serve every request.
func NewGenerator(client *llm.Client, logger logging.Logger) *Generator {
	return &Generator{llm: client, logger: logging.OrNop(logger)}
}

// Generate returns an unrendered document; the renderer lifts it to SVG.
func (g *Generator) Generate(ctx context.Context, kind protocol.Kind, content string, points []protocol.DataPoint) (*artifact.Mermaid, error) {
	if !Supports(kind) {
		return nil, diagramerrors.NewUnsupportedDiagramKind(string(kind))
	}

	if g.llm.Enabled() && strings.TrimSpace(content) != "" {
		dsl, err := g.draft(ctx, kind, content, points)
		if err == nil {
			g.logger.Debug("mermaid draft accepted: kind=%s bytes=%d", kind, len(dsl))
			return &artifact.Mermaid{DSL: dsl}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Debug("mermaid draft rejected, using builder: kind=%s err=%v", kind, err)
	}

	dsl, err := BuildDSL(kind, content, points)
	if err != nil {
		return nil, err
	}
	return &artifact.Mermaid{DSL: dsl}, nil
}

// draft asks the model for a document and validates the reply.
func (g *Generator) draft(ctx context.Context, kind protocol.Kind, content string, points []protocol.DataPoint) (string, error) {
	raw, err := g.llm.Complete(ctx, BuildPrompt(kind, content, points))
	if err != nil {
		return "", err
	}
	dsl := llm.UnwrapContent(raw)
	if err := ValidateDSL(kind, dsl); err != nil {
		return "", err
	}
	return dsl, nil
}
