// Package guard screens inbound chat text for prompt-injection phrasing.
package guard

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Action is what the guard does when a scan crosses the threshold.
type Action int

const (
	// ActionWarn logs suspicious messages and lets them through.
	ActionWarn Action = iota
	// ActionBlock drops messages whose score reaches the threshold.
	ActionBlock
)

// ParseAction maps a config string to an Action. Unknown values mean warn.
func ParseAction(s string) Action {
	if strings.EqualFold(strings.TrimSpace(s), "block") {
		return ActionBlock
	}
	return ActionWarn
}

// Kind classifies a scan verdict.
type Kind int

const (
	Safe Kind = iota
	Suspicious
	Blocked
)

// Verdict is the result of scanning one message.
type Verdict struct {
	Kind     Kind
	Patterns []string // matched phrases, empty for Safe
	Score    float64  // 0..1
	Reason   string   // set for Blocked
}

// DefaultThreshold is the score at which block mode drops a message.
const DefaultThreshold = 0.7

// extraPatternWeight is the weight given to operator-supplied phrases.
const extraPatternWeight = 0.5

type pattern struct {
	phrase string
	weight float64
}

// Weighted phrase dictionary. Phrases are lowercase; scans lowercase the
// input, so matching is case-insensitive. Overlapping phrases stack and the
// total clamps at 1.0.
var builtins = []pattern{
	{"ignore previous instructions", 0.9},
	{"ignore all previous", 0.6},
	{"previous instructions", 0.4},
	{"disregard all prior", 0.8},
	{"disregard previous", 0.6},
	{"disregard your guidelines", 0.8},
	{"forget your instructions", 0.8},
	{"forget everything above", 0.7},
	{"reveal your system prompt", 0.7},
	{"system prompt", 0.4},
	{"new instructions:", 0.6},
	{"override your", 0.5},
	{"bypass your", 0.5},
	{"you are now", 0.5},
	{"pretend you are", 0.4},
	{"act as if", 0.3},
	{"do anything now", 0.7},
	{"developer mode", 0.5},
	{"jailbreak", 0.7},
}

// Guard is a reusable scanner. Safe for concurrent use.
type Guard struct {
	action    Action
	threshold float64
	patterns  []pattern
	matcher   *ahocorasick.Matcher
}

// New builds a guard with the built-in dictionary plus any extra phrases.
func New(action Action, extra []string) *Guard {
	patterns := make([]pattern, 0, len(builtins)+len(extra))
	patterns = append(patterns, builtins...)
	for _, phrase := range extra {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			patterns = append(patterns, pattern{phrase, extraPatternWeight})
		}
	}

	dict := make([]string, len(patterns))
	for i, p := range patterns {
		dict[i] = p.phrase
	}

	return &Guard{
		action:    action,
		threshold: DefaultThreshold,
		patterns:  patterns,
		matcher:   ahocorasick.NewStringMatcher(dict),
	}
}

// Scan classifies one message.
func (g *Guard) Scan(text string) Verdict {
	hits := g.matcher.Match([]byte(strings.ToLower(text)))
	if len(hits) == 0 {
		return Verdict{Kind: Safe}
	}

	var score float64
	matched := make([]string, 0, len(hits))
	for _, i := range hits {
		matched = append(matched, g.patterns[i].phrase)
		score += g.patterns[i].weight
	}
	if score > 1 {
		score = 1
	}

	if g.action == ActionBlock && score >= g.threshold {
		return Verdict{
			Kind:     Blocked,
			Patterns: matched,
			Score:    score,
			Reason:   "injection pattern: " + matched[0],
		}
	}
	return Verdict{Kind: Suspicious, Patterns: matched, Score: score}
}
