// Package router maps a diagram kind to its ordered generation strategies.
// Selection is pure: the route table is computed once from the loaded
// template set and never consults request content or performs I/O.
package router

import (
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/errors"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// Strategy names a generation path. The values appear verbatim in
// response metadata and metrics labels.
type Strategy string

const (
	StrategySVGTemplate Strategy = "svg_template"
	StrategyMermaid     Strategy = "mermaid"
	StrategyChart       Strategy = "chart"
)

// Route is one strategy with its selection confidence. Later routes are
// fallbacks, consulted only after a retriable failure of the one before.
type Route struct {
	Strategy   Strategy
	Confidence float64
}

// Router holds the immutable route table. Build one per loaded template
// library.
type Router struct {
	routes map[protocol.Kind][]Route
}

// New computes the route table for every known kind against the available
// template ids.
//
// Template-id matches take svg_template first with a mermaid fallback.
// Mermaid-native kinds lead with mermaid and fall back to a template only
// when a compatible one is loaded. Chart kinds have no fallback.
func New(templateIDs []string) *Router {
	available := make(map[string]struct{}, len(templateIDs))
	for _, id := range templateIDs {
		available[id] = struct{}{}
	}

	routes := make(map[protocol.Kind][]Route)
	for _, kind := range protocol.Kinds() {
		_, hasTemplate := available[string(kind)]
		switch {
		case hasTemplate:
			routes[kind] = []Route{
				{Strategy: StrategySVGTemplate, Confidence: 0.9},
				{Strategy: StrategyMermaid, Confidence: 0.5},
			}
		case kind.IsMermaid():
			routes[kind] = []Route{{Strategy: StrategyMermaid, Confidence: 0.9}}
		case kind.IsChart():
			routes[kind] = []Route{{Strategy: StrategyChart, Confidence: 0.95}}
		case kind.IsTemplate():
			// A template kind whose asset is not loaded can still be
			// drawn by the Mermaid path.
			routes[kind] = []Route{{Strategy: StrategyMermaid, Confidence: 0.5}}
		}
	}
	return &Router{routes: routes}
}

// Routes returns the ordered strategy list for a kind. Unknown kinds have
// no routes and yield UnsupportedDiagramKind.
func (r *Router) Routes(kind protocol.Kind) ([]Route, error) {
	routes, ok := r.routes[kind]
	if !ok {
		return nil, errors.NewUnsupportedDiagramKind(string(kind))
	}
	out := make([]Route, len(routes))
	copy(out, routes)
	return out, nil
}
