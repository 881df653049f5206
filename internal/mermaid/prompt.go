package mermaid

import (
	"fmt"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/protocol"
)

// syntaxRules are shown to the model verbatim, keyed by declaration.
var syntaxRules = map[string][]string{
	"flowchart": {
		"open with `flowchart TD`",
		"declare nodes as `id[\"Label\"]` with double-quoted labels",
		"use short alphanumeric ids (N1, N2, ...)",
		"connect nodes with `-->`",
	},
	"sequenceDiagram": {
		"open with `sequenceDiagram`",
		"declare each actor as `participant P1 as Name`",
		"send messages with `P1->>P2: message`",
	},
	"gantt": {
		"open with `gantt`",
		"include `dateFormat YYYY-MM-DD` and at least one `section`",
		"write tasks as `Name :t1, 2024-01-01, 7d` or `Name :t2, after t1, 7d`",
	},
	"stateDiagram-v2": {
		"open with `stateDiagram-v2`",
		"alias long names with `state \"Name\" as S1`",
		"connect states with `-->`, entering from `[*]` and ending at `[*]`",
	},
	"journey": {
		"open with `journey`",
		"include a `title` and at least one `section`",
		"write tasks as `Task name: 3: Actor` with scores 1-5",
	},
	"mindmap": {
		"open with `mindmap`",
		"put the root on the second line as `root((Topic))`",
		"indent child nodes consistently deeper than their parent",
		"do not use parentheses inside node text",
	},
}

// workedExamples gives the model three complete documents per declaration.
var workedExamples = map[string][]string{
	"flowchart": {
		`flowchart TD
    N1["Order placed"]
    N2["Payment captured"]
    N3["Shipped"]
    N1 --> N2
    N2 --> N3`,
		`flowchart TD
    N1["Draft"]
    N2["Review"]
    N3["Approved"]
    N4["Rejected"]
    N1 --> N2
    N2 --> N3
    N2 --> N4`,
		`flowchart TD
    N1["Build"]
    N2["Test"]
    N3["Deploy"]
    N1 --> N2
    N2 --> N3
    N3 --> N1`,
	},
	"sequenceDiagram": {
		`sequenceDiagram
    participant P1 as Client
    participant P2 as API
    P1->>P2: submit form
    P2->>P1: 201 Created`,
		`sequenceDiagram
    participant P1 as Browser
    participant P2 as CDN
    participant P3 as Origin
    P1->>P2: GET /page
    P2->>P3: cache miss
    P3->>P2: page body
    P2->>P1: cached page`,
		`sequenceDiagram
    participant P1 as User
    participant P2 as App
    participant P3 as Database
    P1->>P2: sign in
    P2->>P3: verify credentials
    P3->>P2: ok
    P2->>P1: session token`,
	},
	"gantt": {
		`gantt
    title Launch Plan
    dateFormat YYYY-MM-DD
    section Build
    Prototype :t1, 2024-01-01, 14d
    Hardening :t2, after t1, 7d`,
		`gantt
    title Migration
    dateFormat YYYY-MM-DD
    section Prepare
    Inventory :t1, 2024-01-01, 5d
    section Execute
    Cutover :t2, after t1, 2d
    Validation :t3, after t2, 3d`,
		`gantt
    title Hiring
    dateFormat YYYY-MM-DD
    section Pipeline
    Sourcing :t1, 2024-01-01, 10d
    Interviews :t2, after t1, 15d
    Offers :t3, after t2, 5d`,
	},
	"stateDiagram-v2": {
		`stateDiagram-v2
    state "Pending" as S1
    state "Active" as S2
    state "Closed" as S3
    [*] --> S1
    S1 --> S2
    S2 --> S3
    S3 --> [*]`,
		`stateDiagram-v2
    state "Idle" as S1
    state "Running" as S2
    [*] --> S1
    S1 --> S2
    S2 --> S1
    S2 --> [*]`,
		`stateDiagram-v2
    state "Ordered" as S1
    state "Paid" as S2
    state "Shipped" as S3
    state "Returned" as S4
    [*] --> S1
    S1 --> S2
    S2 --> S3
    S3 --> S4
    S3 --> [*]`,
	},
	"journey": {
		`journey
    title Checkout
    section Purchase
        Browse catalog: 4: User
        Add to cart: 5: User
        Pay: 2: User`,
		`journey
    title Onboarding
    section First day
        Create account: 5: User
        Verify email: 3: User
    section First week
        Invite team: 4: User`,
		`journey
    title Support call
    section Contact
        Find number: 2: Caller
        Wait in queue: 1: Caller
        Resolve issue: 5: Caller`,
	},
	"mindmap": {
		`mindmap
    root((Product))
        Pricing
        Features
        Roadmap`,
		`mindmap
    root((Launch))
        Marketing
            Press kit
            Social posts
        Engineering
            Freeze
            Rollback plan`,
		`mindmap
    root((Health))
        Diet
        Exercise
        Sleep`,
	},
}

// BuildPrompt assembles the single-turn prompt for an LLM draft: the target
// kind, the user's content verbatim, mined entities and relations, the
// declaration's syntax rules, and three worked examples.
func BuildPrompt(kind protocol.Kind, content string, points []protocol.DataPoint) string {
	decl, _ := Declaration(kind)

	var b strings.Builder
	fmt.Fprintf(&b, "Write a Mermaid %s document expressing a %s diagram.\n", decl, kind)
	b.WriteString("\nContent:\n")
	b.WriteString(content)
	b.WriteString("\n")

	if len(points) > 0 {
		b.WriteString("\nData points in order:\n")
		for _, p := range points {
			fmt.Fprintf(&b, "- %s", p.Label)
			if p.Value != nil {
				fmt.Fprintf(&b, " (%g)", *p.Value)
			}
			if p.Description != "" {
				fmt.Fprintf(&b, ": %s", p.Description)
			}
			b.WriteString("\n")
		}
	}

	ex := Extract(content)
	if len(ex.Entities) > 0 {
		b.WriteString("\nDetected entities: ")
		b.WriteString(strings.Join(ex.Entities, ", "))
		b.WriteString("\n")
	}
	if len(ex.Relations) > 0 {
		b.WriteString("Detected relations:\n")
		for _, rel := range ex.Relations {
			fmt.Fprintf(&b, "- %s -> %s\n", rel.From, rel.To)
		}
	}

	b.WriteString("\nSyntax rules:\n")
	for _, rule := range syntaxRules[decl] {
		fmt.Fprintf(&b, "- %s\n", rule)
	}

	b.WriteString("\nExamples:\n")
	for i, example := range workedExamples[decl] {
		fmt.Fprintf(&b, "\nExample %d:\n%s\n", i+1, example)
	}

	b.WriteString("\nRespond with only the Mermaid document. No prose, no code fences.")
	return b.String()
}
