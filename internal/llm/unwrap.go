package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n(.*?)```")

// wrapperKeys are the field names models pick when asked for a document and
// they answer with JSON anyway.
var wrapperKeys = []string{"dsl", "mermaid", "diagram", "code", "content", "text", "output"}

// UnwrapContent normalizes a model completion down to the bare document the
// prompt asked for. Markdown code fences are stripped; when the model wraps
// the document in JSON (a quoted string, or an object keyed by a well-known
// field name) the wrapper is repaired with jsonrepair and decoded. Content
// that resists unwrapping is returned trimmed so validation can reject it.
func UnwrapContent(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if !looksLikeJSON(s) {
		return s
	}
	if inner, ok := decodeWrapped(s); ok {
		return inner
	}
	return s
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`)
}

func decodeWrapped(s string) (string, bool) {
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		repaired = s
	}

	var str string
	if err := json.Unmarshal([]byte(repaired), &str); err == nil {
		return normalizeInner(str)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(repaired), &obj); err == nil {
		for _, key := range wrapperKeys {
			if v, ok := obj[key].(string); ok {
				if inner, ok := normalizeInner(v); ok {
					return inner, true
				}
			}
		}
		// A single-field object is unambiguous even under an unknown key.
		if len(obj) == 1 {
			for _, v := range obj {
				if s, ok := v.(string); ok {
					return normalizeInner(s)
				}
			}
		}
	}

	var arr []any
	if err := json.Unmarshal([]byte(repaired), &arr); err == nil && len(arr) > 0 {
		if s, ok := arr[0].(string); ok {
			return normalizeInner(s)
		}
	}

	return "", false
}

func normalizeInner(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return "", false
	}
	return s, true
}
