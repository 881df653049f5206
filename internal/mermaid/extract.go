// Package mermaid generates Mermaid DSL documents and renders them to SVG
// through an external CLI. Generation prefers an LLM draft when an endpoint
// is configured and always has a deterministic per-kind builder to fall
// back on.
package mermaid

import (
	"regexp"
	"strings"
)

const (
	maxEntities  = 20
	maxRelations = 20
	maxPhrase    = 60
)

// Relation is a directed edge pulled from prose.
type Relation struct {
	From string
	To   string
}

// Extraction seeds the LLM prompt and the deterministic builders with
// entities and relations found by lightweight pattern matching. It does not
// need to be complete, only suggestive.
type Extraction struct {
	Entities  []string
	Relations []Relation
}

var (
	arrowSplit    = regexp.MustCompile(`\s*(?:->|=>|\x{2192})\s*`)
	linkPattern   = regexp.MustCompile(`(?i)\b([\w-]+(?: [\w-]+){0,3}?)\s+(?:leads to|flows to|goes to|depends on|triggers|calls|becomes|feeds into)\s+([\w-]+(?: [\w-]+){0,3})`)
	fromToPattern = regexp.MustCompile(`(?i)\bfrom\s+([\w-]+(?: [\w-]+){0,2}?)\s+to\s+([\w-]+(?: [\w-]+){0,2})`)
	quotedPattern = regexp.MustCompile(`"([^"\n]{1,60})"|'([^'\n]{1,60})'`)
	listPattern   = regexp.MustCompile(`(?m)^[ \t]*(?:[-*]|\d+[.)])[ \t]+(.{1,60})`)
	titlePattern  = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]+(?: [A-Z][a-zA-Z0-9]+){0,3})\b`)
)

// Sentence openers and connectives that title-case matching would otherwise
// collect as entities.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "but": true, "first": true,
	"finally": true, "if": true, "it": true, "next": true, "or": true,
	"that": true, "the": true, "then": true, "these": true, "this": true,
	"those": true, "when": true, "with": true,
}

// Extract mines content for entities and directed relations.
func Extract(content string) Extraction {
	var ex Extraction
	seen := make(map[string]bool)

	addEntity := func(raw string) {
		name := normalizePhrase(raw)
		if name == "" || len(ex.Entities) >= maxEntities {
			return
		}
		key := strings.ToLower(name)
		if seen[key] || (!strings.Contains(key, " ") && stopwords[key]) {
			return
		}
		seen[key] = true
		ex.Entities = append(ex.Entities, name)
	}
	addRelation := func(from, to string) {
		f, t := normalizePhrase(from), normalizePhrase(to)
		if f == "" || t == "" || strings.EqualFold(f, t) || len(ex.Relations) >= maxRelations {
			return
		}
		ex.Relations = append(ex.Relations, Relation{From: f, To: t})
		addEntity(f)
		addEntity(t)
	}

	for _, chain := range arrowChains(content) {
		for i := 0; i+1 < len(chain); i++ {
			addRelation(chain[i], chain[i+1])
		}
	}
	for _, m := range linkPattern.FindAllStringSubmatch(content, -1) {
		addRelation(m[1], m[2])
	}
	for _, m := range fromToPattern.FindAllStringSubmatch(content, -1) {
		addRelation(m[1], m[2])
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(content, -1) {
		if m[1] != "" {
			addEntity(m[1])
		} else {
			addEntity(m[2])
		}
	}
	for _, m := range listPattern.FindAllStringSubmatch(content, -1) {
		addEntity(m[1])
	}
	for _, m := range titlePattern.FindAllStringSubmatch(content, -1) {
		addEntity(m[1])
	}
	return ex
}

// arrowChains splits each line on arrow tokens so chains like "a -> b -> c"
// yield every hop, which pairwise regex matching cannot do.
func arrowChains(content string) [][]string {
	var chains [][]string
	for _, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "->") && !strings.Contains(line, "=>") && !strings.Contains(line, "→") {
			continue
		}
		segments := arrowSplit.Split(line, -1)
		if len(segments) < 2 {
			continue
		}
		chain := make([]string, 0, len(segments))
		for i, seg := range segments {
			if i == 0 {
				seg = tailPhrase(seg)
			}
			if i == len(segments)-1 {
				seg = headPhrase(seg)
			}
			if seg = normalizePhrase(seg); seg != "" {
				chain = append(chain, seg)
			}
		}
		if len(chain) >= 2 {
			chains = append(chains, chain)
		}
	}
	return chains
}

// tailPhrase keeps the text after the last sentence break, isolating the
// chain head from preceding prose.
func tailPhrase(s string) string {
	if idx := strings.LastIndexAny(s, ".,:;!?"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// headPhrase keeps the text before the first sentence break, isolating the
// chain tail from trailing prose.
func headPhrase(s string) string {
	if idx := strings.IndexAny(s, ".,:;!?"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func normalizePhrase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, ".,;:!?\"'")
	if len(s) > maxPhrase {
		s = strings.TrimSpace(s[:maxPhrase])
	}
	return s
}
