package mermaid

import (
	"fmt"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// structuralTokens lists, per declaration, substrings whose presence marks
// a document as more than a bare header. Mindmaps have no operator syntax;
// any node line after the header counts instead.
var structuralTokens = map[string][]string{
	"flowchart":       {"-->", "---", "-.->", "==>"},
	"sequenceDiagram": {"->>", "-->>", "-x", "--x", "participant"},
	"gantt":           {"section", "dateFormat"},
	"stateDiagram-v2": {"-->", "state "},
	"journey":         {"section", ": "},
	"mindmap":         nil,
}

// ValidateDSL checks a candidate document against the kind it claims to
// express: the first non-blank line must open with the kind's declaration
// and the body must contain at least one structural token.
func ValidateDSL(kind protocol.Kind, dsl string) error {
	decl, ok := Declaration(kind)
	if !ok {
		return fmt.Errorf("kind %q has no mermaid form", kind)
	}

	lines := strings.Split(strings.ReplaceAll(dsl, "\r\n", "\n"), "\n")
	header := ""
	var body []string
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		header = strings.TrimSpace(line)
		body = lines[i+1:]
		break
	}
	if header == "" {
		return fmt.Errorf("empty document")
	}
	if header != decl && !strings.HasPrefix(header, decl+" ") {
		return fmt.Errorf("document opens with %q, want %q", firstWord(header), decl)
	}

	tokens := structuralTokens[decl]
	if tokens == nil {
		for _, line := range body {
			if strings.TrimSpace(line) != "" {
				return nil
			}
		}
		return fmt.Errorf("document has no nodes")
	}
	joined := strings.Join(body, "\n")
	for _, token := range tokens {
		if strings.Contains(joined, token) {
			return nil
		}
	}
	return fmt.Errorf("document has no %s structure", decl)
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
