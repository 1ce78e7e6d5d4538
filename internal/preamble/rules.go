// Package preamble removes generator self-narration from raw model output.
package preamble

import (
	"fmt"
	"regexp"
)

// Action is what the stripper does with text a rule matches.
type Action string

const (
	// ActionDropLine removes the whole line when the entire line matches.
	ActionDropLine Action = "drop_line"
	// ActionDropBlock removes every match of the pattern from the full text.
	ActionDropBlock Action = "drop_block"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionDropLine || a == ActionDropBlock
}

// Rule is one pattern→action entry of the stripping table.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
}

// NewRule compiles pattern case-insensitively. Line patterns are anchored so
// they only ever match a whole line.
func NewRule(name, pattern string, action Action) (Rule, error) {
	if !action.Valid() {
		return Rule{}, fmt.Errorf("preamble rule %q: unknown action %q", name, action)
	}
	expr := "(?is)" + pattern
	if action == ActionDropLine {
		expr = "(?i)^(?:" + pattern + ")$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("preamble rule %q: %w", name, err)
	}
	return Rule{Name: name, Pattern: re, Action: action}, nil
}

func mustRule(name, pattern string, action Action) Rule {
	r, err := NewRule(name, pattern, action)
	if err != nil {
		panic(err)
	}
	return r
}

const itemNouns = `(?:flash\s*cards?|cards?|questions?|quiz(?:zes)?|quiz questions?|exercises?|items?|problems?|mcqs?|q\s*&\s*a(?: pairs)?)`

var defaultRules = []Rule{
	mustRule("think-block", `<think>.*?</think>`, ActionDropBlock),
	mustRule("announce-count",
		`(?:(?:sure|certainly|okay|ok)[,!.]?\s*)?(?:here\s+(?:are|is)|below\s+(?:are|is)|these\s+are|the\s+following\s+(?:are|is)|i(?:'ve|\s+have)\s+(?:created|generated|prepared|written|put together))\b.*\b`+itemNouns+`\b.*`,
		ActionDropLine),
	mustRule("acknowledgement", `(?:sure|certainly|of course|absolutely|okay|ok|great)(?:[!.,]\s*[^?]{0,80})?`, ActionDropLine),
	mustRule("restated-instruction",
		`as (?:you )?requested\b[^?]*|you asked (?:for|me)\b[^?]*|based on (?:the|your) (?:provided )?(?:text|content|document|material|topic|request)[^?]*:`,
		ActionDropLine),
	mustRule("echoed-parameter",
		`(?:difficulty(?: level)?|language|format|focus|topic|count|level|number of (?:items|questions|flashcards|exercises))\s*:\s*[^?]{1,60}`,
		ActionDropLine),
	mustRule("closing-remark",
		`(?:i hope|hope (?:this|these)|let me know|feel free|good luck|happy (?:studying|learning)|if you (?:need|want|have any|would like)\s+(?:more|further|additional|other|any|help)\b)[^?]*`,
		ActionDropLine),
	mustRule("markdown-fence", "(?:```|~~~)[a-z]*", ActionDropLine),
	mustRule("heading", `#{1,6}\s+[^?]*`, ActionDropLine),
	mustRule("item-label", `(?:flash\s*card|card|item|set)\s*#?\d+\s*:?`, ActionDropLine),
}

// DefaultRules returns the built-in stripping table.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}
