package preamble

import (
	"regexp"
	"strings"
)

var (
	// inlineTag splits "…about Rome: Q: What is Rome? A: …" so each tag starts a line.
	inlineTag = regexp.MustCompile(`([.!?:])[ \t]+((?i:Q|A|Question|Answer|Exercise|Task|Solution)\s*:)`)

	itemTag      = regexp.MustCompile(`(?i)^(?:q|a|question|answer|exercise|task|problem|solution|correct answer)\s*\d*\s*[:.)\-]`)
	questionTag  = regexp.MustCompile(`(?i)^(?:q|question|exercise|task|problem)\s*\d*\s*[:.)\-]`)
	optionMarker = regexp.MustCompile(`^\(?[A-Da-d][).]\s+\S`)
	numbering    = regexp.MustCompile(`^\d{1,3}[.)]\s*`)
)

// Stripper applies a rule table to raw generator output. It is safe for
// concurrent use.
type Stripper struct {
	lineRules  []Rule
	blockRules []Rule
}

// New builds a stripper from rules. With no rules it uses DefaultRules.
func New(rules ...Rule) *Stripper {
	if len(rules) == 0 {
		rules = defaultRules
	}
	s := &Stripper{}
	for _, r := range rules {
		switch r.Action {
		case ActionDropBlock:
			s.blockRules = append(s.blockRules, r)
		case ActionDropLine:
			s.lineRules = append(s.lineRules, r)
		}
	}
	return s
}

// WithRules returns a stripper with extra appended after the current table.
func (s *Stripper) WithRules(extra ...Rule) *Stripper {
	n := &Stripper{
		lineRules:  append([]Rule(nil), s.lineRules...),
		blockRules: append([]Rule(nil), s.blockRules...),
	}
	for _, r := range extra {
		switch r.Action {
		case ActionDropBlock:
			n.blockRules = append(n.blockRules, r)
		case ActionDropLine:
			n.lineRules = append(n.lineRules, r)
		}
	}
	return n
}

var std = New()

// Strip cleans raw with the default rules.
func Strip(raw string) string { return std.Strip(raw) }

// IsPreamble reports whether text matches a default preamble rule.
func IsPreamble(text string) bool { return std.IsPreamble(text) }

// Strip removes meta-commentary from raw as whole lines. Lines that look like
// an item (a Q/A tag, an option marker, or a question) are always kept, as is
// a sentence directly under a question, which is that question's answer.
// Applying Strip to its own output returns it unchanged.
func (s *Stripper) Strip(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = untilStable(text, func(t string) string { return inlineTag.ReplaceAllString(t, "$1\n$2") })
	for _, r := range s.blockRules {
		text = untilStable(text, func(t string) string { return r.Pattern.ReplaceAllString(t, "\n") })
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	// afterQuestion is set while the last kept line is a question with no
	// blank line since.
	afterQuestion := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			afterQuestion = false
			continue
		}
		if s.matchLine(line) && !looksLikeItem(line) && !(afterQuestion && isSentence(line)) {
			continue
		}
		out = append(out, line)
		blank = false
		afterQuestion = isQuestion(line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// IsPreamble reports whether any line rule matches text as a whole. It does not
// apply the item-protection used by Strip, so a stem that is really narration
// is still caught.
func (s *Stripper) IsPreamble(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return s.matchLine(text)
}

func (s *Stripper) matchLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	core := trimMarkup(trimmed)
	for _, r := range s.lineRules {
		if r.Pattern.MatchString(trimmed) || (core != trimmed && r.Pattern.MatchString(core)) {
			return true
		}
	}
	return false
}

func looksLikeItem(line string) bool {
	core := itemCore(line)
	return itemTag.MatchString(core) || optionMarker.MatchString(core) || strings.HasSuffix(core, "?")
}

func isQuestion(line string) bool {
	core := itemCore(line)
	return strings.HasSuffix(core, "?") || questionTag.MatchString(core)
}

// isSentence reports whether line reads as a full answer sentence rather than
// markup or a short aside.
func isSentence(line string) bool {
	core := itemCore(line)
	return strings.HasSuffix(core, ".") && len(strings.Fields(core)) >= 3
}

func itemCore(line string) string {
	core := trimMarkup(strings.TrimSpace(line))
	core = strings.TrimLeft(core, "# ")
	core = numbering.ReplaceAllString(core, "")
	return trimMarkup(core)
}

// untilStable reapplies f until the text stops changing.
func untilStable(text string, f func(string) string) string {
	for i := 0; i < 8; i++ {
		next := f(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// trimMarkup drops emphasis and list bullets around a line.
func trimMarkup(s string) string {
	s = strings.TrimLeft(s, "-•> \t")
	return strings.Trim(s, "*_ \t")
}
