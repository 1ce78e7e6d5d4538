// Package prompt renders the generation prompt for each item kind.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"studyforge/internal/domain"
)

// Style selects the prompt variant.
type Style string

const (
	StyleStandard Style = "standard"
	StyleSimple   Style = "simple"
)

// DefaultMaxSourceChars bounds the source text embedded in a prompt.
const DefaultMaxSourceChars = 4000

type data struct {
	Count      int
	Difficulty domain.Difficulty
	Language   string
	Source     string
	Topic      bool
}

const sourceIntro = `{{if .Topic}}Write them about the topic below.{{else}}Base them only on the content below.{{end}}`

var templates = map[domain.ItemKind]map[Style]string{
	domain.KindFlashcard: {
		StyleStandard: `Create {{.Count}} {{.Difficulty}} level flashcards{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `
Write each flashcard as two lines:
Q: <a question ending with a question mark>
A: <a complete answer sentence>
Leave a blank line between flashcards. Output only the flashcards.

{{.Source}}`,
		StyleSimple: `Write {{.Count}} short question and answer pairs{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `
Use "Q:" and "A:" lines.

{{.Source}}`,
	},
	domain.KindQuiz: {
		StyleStandard: `Create {{.Count}} {{.Difficulty}} level multiple choice questions{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `
Use this format for each question:
Question: <question ending with a question mark>
A) <option>
B) <option>
C) <option>
D) <option>
Answer: <letter of the correct option>
Leave a blank line between questions. Output only the questions.

{{.Source}}`,
		StyleSimple: `Write {{.Count}} multiple choice questions with options A) to D) and an "Answer:" line{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `

{{.Source}}`,
	},
	domain.KindExercise: {
		StyleStandard: `Create {{.Count}} {{.Difficulty}} level practice exercises{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `
Mix fill-in-the-blank, true or false and short explanation tasks. Use this format:
Exercise: <instruction ending with a period>
Solution: <the expected answer>
Leave a blank line between exercises. Output only the exercises.

{{.Source}}`,
		StyleSimple: `Write {{.Count}} short exercises, each as an "Exercise:" line followed by a "Solution:" line{{if .Language}} in {{.Language}}{{end}}.
` + sourceIntro + `

{{.Source}}`,
	},
}

// Builder renders prompts from parsed templates.
type Builder struct {
	maxSourceChars int
	templates      map[domain.ItemKind]map[Style]*template.Template
}

// NewBuilder parses every template. maxSourceChars <= 0 uses the default.
func NewBuilder(maxSourceChars int) (*Builder, error) {
	if maxSourceChars <= 0 {
		maxSourceChars = DefaultMaxSourceChars
	}
	b := &Builder{
		maxSourceChars: maxSourceChars,
		templates:      make(map[domain.ItemKind]map[Style]*template.Template, len(templates)),
	}
	for kind, styles := range templates {
		b.templates[kind] = make(map[Style]*template.Template, len(styles))
		for style, text := range styles {
			t, err := template.New(string(kind) + "-" + string(style)).Parse(text)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s/%s prompt: %w", kind, style, err)
			}
			b.templates[kind][style] = t
		}
	}
	return b, nil
}

// Build renders the prompt for req in the given style.
func (b *Builder) Build(req domain.GenerationRequest, style Style) (string, error) {
	styles, ok := b.templates[req.Kind]
	if !ok {
		return "", fmt.Errorf("no prompt for item kind %q", req.Kind)
	}
	t, ok := styles[style]
	if !ok {
		t = styles[StyleStandard]
	}

	var buf bytes.Buffer
	err := t.Execute(&buf, data{
		Count:      req.Count,
		Difficulty: req.Difficulty,
		Language:   req.Language,
		Source:     Truncate(strings.TrimSpace(req.SourceText), b.maxSourceChars),
		Topic:      req.Origin == domain.OriginTopicSearch,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", req.Kind, err)
	}
	return buf.String(), nil
}

// Truncate cuts s to at most max runes, preferring a word boundary.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
