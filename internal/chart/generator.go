package chart

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// Generator produces chart artifacts. Code mode returns the python source
// itself; executed mode runs it in the sandbox and returns the image. Any
// execution failure degrades to code mode, so a configured-but-broken
// interpreter never fails a request that the source alone could serve.
type Generator struct {
	executor *Executor
	logger   logging.Logger
}

func NewGenerator(executor *Executor, logger logging.Logger) *Generator {
	return &Generator{executor: executor, logger: logging.OrNop(logger)}
}

// Generate builds the source for kind and, when the executor is available,
// runs it. The returned artifact is python source or an executed image.
func (g *Generator) Generate(ctx context.Context, kind protocol.Kind, params Params, points []protocol.DataPoint) (*artifact.Chart, error) {
	source, err := BuildSource(kind, params, points)
	if err != nil {
		return nil, err
	}

	if g.executor.Enabled() {
		output, execErr := g.executor.Execute(ctx, source)
		if execErr == nil {
			if contentType := imageContentType(output); contentType != "" {
				return &artifact.Chart{Kind: contentType, Body: output}, nil
			}
			execErr = fmt.Errorf("interpreter output is neither SVG nor PNG")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("chart execution for %s failed, returning source: %v", kind, execErr)
	}

	return &artifact.Chart{Kind: artifact.ContentTypePython, Body: []byte(source)}, nil
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// imageContentType sniffs the executed output. Matplotlib SVG starts with
// an XML prolog, so the probe scans a bounded prefix for the svg tag.
func imageContentType(output []byte) string {
	if bytes.HasPrefix(output, pngMagic) {
		return artifact.ContentTypePNG
	}
	head := output
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.Contains(head, []byte("<svg")) {
		return artifact.ContentTypeSVG
	}
	return ""
}
