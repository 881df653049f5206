package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens returns the cl100k_base token count of text. If the encoding
// cannot be initialized it falls back to a character heuristic.
func CountTokens(text string) int {
	if enc := tokenEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// TruncateToTokens cuts text down to at most maxTokens tokens. Text already
// within budget is returned unchanged; truncated text gets an ellipsis so
// the model sees the cut.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if enc := tokenEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens]) + "..."
	}
	runes := []rune(text)
	limit := maxTokens * 4
	if limit >= len(runes) {
		return text
	}
	return string(runes[:limit]) + "..."
}

// estimateTokens approximates a token count as max(runes/4, words).
func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}
