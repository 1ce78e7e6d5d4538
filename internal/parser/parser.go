// Package parser splits cleaned generator output into candidate study items.
package parser

import (
	"regexp"
	"strings"

	"studyforge/internal/domain"
)

// Mode names the boundary heuristic that produced a parse.
type Mode string

const (
	ModeTagged    Mode = "tagged"
	ModeNumbered  Mode = "numbered"
	ModeParagraph Mode = "paragraph"
	ModeNone      Mode = "none"
)

var (
	stemTag    = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?(?:\*\*)?\s*(?:\d{1,3}[.)]\s*)?(?:\*\*)?(?:q\s*\d{0,3}\s*[:.)]|(?:question|exercise|task|problem)\s*#?\d{0,3}\s*[:.)])\s*(?:\*\*)?\s*`)
	answerTag  = regexp.MustCompile(`(?i)^(?:\*\*)?\s*(?:a\s*\d{0,3}\s*:|(?:correct answer|answer|solution)\s*\d{0,3}\s*[:\-–])\s*(?:\*\*)?\s*`)
	numbered   = regexp.MustCompile(`^\s*(?:\*\*)?\d{1,3}[.)]\s+\S`)
	numPrefix  = regexp.MustCompile(`^\s*(?:\*\*)?\d{1,3}[.)]\s+(?:\*\*)?`)
	option     = regexp.MustCompile(`^\s*(?:[-*]\s*)?\(?([A-Da-d])[).]\s+(.*)$`)
	inlineOpt  = regexp.MustCompile(`(?:^|\s)\(?([A-D])[).]\s+`)
	letterOnly = regexp.MustCompile(`^\(?([A-Da-d])\)?[.:]?$`)
	letterLead = regexp.MustCompile(`^\(?([A-D])[).:]\s+\S`)
	inlineAns  = regexp.MustCompile(`(?i)\s(?:answer|solution)\s*:\s*`)
)

type line struct {
	text       string
	start, end int
}

type block []line

func (b block) span() domain.Span {
	return domain.Span{Start: b[0].start, End: b[len(b)-1].end}
}

// Result is a parse together with the mode that produced it.
type Result struct {
	Mode       Mode
	Candidates []domain.CandidateItem
}

// Parse splits text into candidates of the given kind in order of appearance.
// Text without any boundary yields no candidates.
func Parse(text string, kind domain.ItemKind) []domain.CandidateItem {
	return ParseWithMode(text, kind).Candidates
}

// ParseWithMode tries explicit tags, then numbered list boundaries, then
// blank-line paragraphs. Tagged output is kept only when some block carries an
// answer tag (or quiz options); the other modes are kept when some block yields
// an answer. When nothing qualifies the first mode that found blocks is used.
func ParseWithMode(text string, kind domain.ItemKind) Result {
	lines := splitLines(text)
	if len(lines) == 0 {
		return Result{Mode: ModeNone}
	}

	var first *Result
	for _, m := range []struct {
		mode   Mode
		split  func([]line, domain.ItemKind) []block
		usable func([]block, []domain.CandidateItem) bool
	}{
		{ModeTagged, splitTagged, wellTagged},
		{ModeNumbered, splitNumbered, anyAnswered},
		{ModeParagraph, splitParagraphs, anyAnswered},
	} {
		blocks := m.split(lines, kind)
		if len(blocks) == 0 {
			continue
		}
		res := Result{Mode: m.mode, Candidates: buildAll(blocks, kind)}
		if m.usable(blocks, res.Candidates) {
			return res
		}
		if first == nil {
			first = &res
		}
	}
	if first != nil {
		return *first
	}
	return Result{Mode: ModeNone}
}

func splitLines(text string) []line {
	var out []line
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		start := offset
		offset += len(raw)
		content := strings.TrimRight(raw, "\r\n")
		trimmed := strings.TrimSpace(content)
		lead := strings.Index(content, trimmed)
		if trimmed == "" {
			out = append(out, line{start: start, end: start})
			continue
		}
		out = append(out, line{text: trimmed, start: start + lead, end: start + lead + len(trimmed)})
	}
	if len(out) > 0 && allBlank(out) {
		return nil
	}
	return out
}

func allBlank(lines []line) bool {
	for _, l := range lines {
		if l.text != "" {
			return false
		}
	}
	return true
}

// splitAt starts a new block at every line for which isStart holds. Lines
// before the first start are ignored; blank lines are dropped.
func splitAt(lines []line, isStart func(string) bool) []block {
	var blocks []block
	var cur block
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		if isStart(l.text) {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
			}
			cur = block{l}
			continue
		}
		if cur != nil {
			cur = append(cur, l)
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

func splitTagged(lines []line, _ domain.ItemKind) []block {
	return splitAt(lines, stemTag.MatchString)
}

func splitNumbered(lines []line, _ domain.ItemKind) []block {
	return splitAt(lines, numbered.MatchString)
}

func splitParagraphs(lines []line, kind domain.ItemKind) []block {
	var blocks []block
	var cur block
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, splitQuestionRuns(cur, kind)...)
		}
		cur = nil
	}
	for _, l := range lines {
		if l.text == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return blocks
}

// splitQuestionRuns breaks a paragraph holding several question/answer pairs
// at each question line that follows an answer line.
func splitQuestionRuns(b block, kind domain.ItemKind) []block {
	if !kind.QuestionStyle() || kind == domain.KindQuiz {
		return []block{b}
	}
	var out []block
	cur := block{b[0]}
	for i := 1; i < len(b); i++ {
		prevQuestion := strings.HasSuffix(b[i-1].text, "?")
		if strings.HasSuffix(b[i].text, "?") && !prevQuestion {
			out = append(out, cur)
			cur = block{b[i]}
			continue
		}
		cur = append(cur, b[i])
	}
	return append(out, cur)
}

func buildAll(blocks []block, kind domain.ItemKind) []domain.CandidateItem {
	out := make([]domain.CandidateItem, 0, len(blocks))
	for _, b := range blocks {
		c := build(b, kind)
		c.Index = len(out)
		out = append(out, c)
	}
	return out
}

// wellTagged reports whether any tagged block has an explicit answer line or
// quiz options.
func wellTagged(blocks []block, cs []domain.CandidateItem) bool {
	for i, b := range blocks {
		if len(cs[i].Options) > 0 {
			return true
		}
		for _, l := range b[1:] {
			if answerTag.MatchString(l.text) {
				return true
			}
		}
	}
	return false
}

func anyAnswered(_ []block, cs []domain.CandidateItem) bool {
	for _, c := range cs {
		if c.Answer != "" || len(c.Options) > 0 {
			return true
		}
	}
	return false
}

func build(b block, kind domain.ItemKind) domain.CandidateItem {
	texts := make([]string, len(b))
	for i, l := range b {
		texts[i] = l.text
	}
	texts[0] = stripLead(texts[0])

	c := domain.CandidateItem{Kind: kind, Span: b.span()}
	if kind == domain.KindQuiz {
		c.Stem, c.Answer, c.Options = extractQuiz(texts)
		return c
	}
	c.Stem, c.Answer = extractPair(texts, kind)
	return c
}

// stripLead removes a stem tag or list number from the first line of a block.
func stripLead(s string) string {
	if loc := stemTag.FindStringIndex(s); loc != nil {
		return cleanText(s[loc[1]:])
	}
	if loc := numPrefix.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
		if loc := stemTag.FindStringIndex(s); loc != nil {
			s = s[loc[1]:]
		}
	}
	return cleanText(s)
}

func extractPair(texts []string, kind domain.ItemKind) (stem, answer string) {
	for i, t := range texts {
		if loc := answerTag.FindStringIndex(t); loc != nil && i > 0 {
			rest := append([]string{t[loc[1]:]}, texts[i+1:]...)
			return joinText(texts[:i]), joinText(rest)
		}
	}

	all := joinText(texts)
	if loc := inlineAns.FindStringIndex(all); loc != nil {
		return cleanText(all[:loc[0]]), cleanText(all[loc[1]:])
	}
	if kind.QuestionStyle() {
		if i := strings.Index(all, "?"); i >= 0 && i < len(all)-1 {
			return cleanText(all[:i+1]), cleanText(all[i+1:])
		}
	}
	if len(texts) > 1 {
		return cleanText(texts[0]), joinText(texts[1:])
	}
	return cleanText(all), ""
}

func extractQuiz(texts []string) (stem, answer string, options []string) {
	var stemParts []string
	for i, t := range texts {
		if loc := answerTag.FindStringIndex(t); loc != nil && i > 0 {
			answer = cleanText(t[loc[1]:])
			continue
		}
		if m := option.FindStringSubmatch(t); m != nil && i > 0 {
			options = append(options, cleanText(m[2]))
			continue
		}
		if len(options) == 0 && answer == "" {
			stemParts = append(stemParts, t)
		}
	}
	stem = joinText(stemParts)

	if len(options) == 0 {
		stem, options = splitInlineOptions(stem)
	}
	return stem, resolveAnswer(answer, options), options
}

// splitInlineOptions handles "Which…? A) x B) y C) z D) w" on one line.
func splitInlineOptions(stem string) (string, []string) {
	locs := inlineOpt.FindAllStringSubmatchIndex(stem, -1)
	if len(locs) < 2 || stem[locs[0][2]:locs[0][3]] != "A" {
		return stem, nil
	}
	options := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(stem)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		options = append(options, cleanText(stem[loc[1]:end]))
	}
	return cleanText(stem[:locs[0][0]]), options
}

// resolveAnswer maps an answer letter onto its option text.
func resolveAnswer(answer string, options []string) string {
	if answer == "" || len(options) == 0 {
		return answer
	}
	for _, o := range options {
		if strings.EqualFold(o, answer) {
			return o
		}
	}
	m := letterOnly.FindStringSubmatch(answer)
	if m == nil {
		m = letterLead.FindStringSubmatch(answer)
	}
	if m == nil {
		return answer
	}
	idx := int(strings.ToUpper(m[1])[0] - 'A')
	if idx < len(options) {
		return options[idx]
	}
	return answer
}

func joinText(parts []string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = cleanText(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, " ")
}

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*")
	return strings.TrimSpace(s)
}
