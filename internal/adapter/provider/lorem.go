package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"
)

var (
	promptCount = regexp.MustCompile(`(?i)^\s*(?:create|write)\s+(\d+)`)
	promptQuiz  = regexp.MustCompile(`(?i)multiple choice`)
	promptDrill = regexp.MustCompile(`(?i)exercises?`)
)

const defaultLoremItems = 5

// Lorem is an offline provider that answers every prompt with placeholder
// items in the requested format. It is not safe for concurrent use.
type Lorem struct {
	id        string
	delay     time.Duration
	generator *loremgen.Lorem
}

func NewLorem(id string, delay time.Duration) *Lorem {
	return &Lorem{id: id, delay: delay, generator: loremgen.New()}
}

func (p *Lorem) Generate(ctx context.Context, prompt string, _ int) (string, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	head, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	count := defaultLoremItems
	if m := promptCount.FindStringSubmatch(head); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			count = n
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sure! Here are %d items:\n\n", count)
	for i := 0; i < count; i++ {
		switch {
		case promptQuiz.MatchString(head):
			p.writeQuiz(&sb)
		case promptDrill.MatchString(head):
			fmt.Fprintf(&sb, "Exercise: %s.\nSolution: %s.\n\n", p.phrase(6, 12), p.phrase(4, 8))
		default:
			fmt.Fprintf(&sb, "Q: %s?\nA: %s.\n\n", p.phrase(5, 10), p.phrase(6, 10))
		}
	}
	return sb.String(), nil
}

func (p *Lorem) writeQuiz(sb *strings.Builder) {
	fmt.Fprintf(sb, "Question: %s?\n", p.phrase(5, 10))
	seen := make(map[string]bool, 4)
	for _, letter := range []string{"A", "B", "C", "D"} {
		opt := p.phrase(1, 3)
		for seen[opt] {
			opt = p.phrase(2, 4)
		}
		seen[opt] = true
		fmt.Fprintf(sb, "%s) %s\n", letter, opt)
	}
	sb.WriteString("Answer: A\n\n")
}

// phrase returns a sentence without trailing punctuation.
func (p *Lorem) phrase(min, max int) string {
	return strings.TrimRight(p.generator.Sentence(min, max), ".!?")
}
