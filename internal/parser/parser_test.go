package parser

import (
	"fmt"
	"strings"
	"testing"

	"studyforge/internal/domain"
	"studyforge/internal/preamble"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TaggedFlashcard(t *testing.T) {
	text := "Q: What is Rome?\nA: Rome is the capital of Italy."

	res := ParseWithMode(text, domain.KindFlashcard)

	assert.Equal(t, ModeTagged, res.Mode)
	require.Len(t, res.Candidates, 1)
	c := res.Candidates[0]
	assert.Equal(t, "What is Rome?", c.Stem)
	assert.Equal(t, "Rome is the capital of Italy.", c.Answer)
	assert.Equal(t, domain.KindFlashcard, c.Kind)
	assert.Equal(t, domain.Span{Start: 0, End: len(text)}, c.Span)
}

func TestParse_TaggedWithNumberingAndEmphasis(t *testing.T) {
	text := "**Q1:** What is DNA?\n**A1:** Deoxyribonucleic acid.\n\n**Q2:** What is RNA?\n**A2:** Ribonucleic acid."

	cs := Parse(text, domain.KindFlashcard)

	require.Len(t, cs, 2)
	assert.Equal(t, "What is DNA?", cs[0].Stem)
	assert.Equal(t, "Deoxyribonucleic acid.", cs[0].Answer)
	assert.Equal(t, "What is RNA?", cs[1].Stem)
	assert.Equal(t, "Ribonucleic acid.", cs[1].Answer)
	assert.Equal(t, 0, cs[0].Index)
	assert.Equal(t, 1, cs[1].Index)
}

func TestParse_NumberedList(t *testing.T) {
	text := "1. What is a cell?\nThe basic unit of life.\n2. What is a tissue?\nA group of similar cells."

	res := ParseWithMode(text, domain.KindFlashcard)

	assert.Equal(t, ModeNumbered, res.Mode)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "What is a cell?", res.Candidates[0].Stem)
	assert.Equal(t, "The basic unit of life.", res.Candidates[0].Answer)
	assert.Equal(t, "What is a tissue?", res.Candidates[1].Stem)
	assert.Equal(t, "A group of similar cells.", res.Candidates[1].Answer)
}

func TestParse_StrippedNumberedKeepsAnswers(t *testing.T) {
	raw := "1. Is the Sun a star?\nCertainly, the Sun is a G-type main-sequence star.\n\n2. What did the framers debate in 1787?\nThese are questions of representation and slavery that split the convention."

	cs := Parse(preamble.Strip(raw), domain.KindFlashcard)

	require.Len(t, cs, 2)
	assert.Equal(t, "Is the Sun a star?", cs[0].Stem)
	assert.Equal(t, "Certainly, the Sun is a G-type main-sequence star.", cs[0].Answer)
	assert.Equal(t, "What did the framers debate in 1787?", cs[1].Stem)
	assert.Equal(t, "These are questions of representation and slavery that split the convention.", cs[1].Answer)
}

func TestParse_ParagraphFallback(t *testing.T) {
	text := "What is gravity?\nA force that attracts masses.\n\nWhat is mass?\nThe amount of matter in an object."

	res := ParseWithMode(text, domain.KindFlashcard)

	assert.Equal(t, ModeParagraph, res.Mode)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "What is gravity?", res.Candidates[0].Stem)
	assert.Equal(t, "The amount of matter in an object.", res.Candidates[1].Answer)
}

func TestParse_ParagraphSplitsQuestionRuns(t *testing.T) {
	text := "What is gravity?\nA force that attracts masses.\nWhat is mass?\nThe amount of matter in an object."

	cs := Parse(text, domain.KindFlashcard)

	require.Len(t, cs, 2)
	assert.Equal(t, "What is mass?", cs[1].Stem)
}

func TestParse_MalformedTagsFallBack(t *testing.T) {
	text := "Q: Cell biology\n1. What is a cell?\nThe basic unit of life.\n2. What is DNA?\nThe genetic material."

	res := ParseWithMode(text, domain.KindFlashcard)

	assert.Equal(t, ModeNumbered, res.Mode)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "What is DNA?", res.Candidates[1].Stem)
	assert.Equal(t, "The genetic material.", res.Candidates[1].Answer)
}

func TestParse_ExerciseWithSolution(t *testing.T) {
	text := "Exercise 1: Fill in the blank: ___ is the powerhouse of the cell.\nSolution: The mitochondrion.\n\n" +
		"Exercise 2: True or false: plants make glucose.\nSolution: True, through photosynthesis."

	cs := Parse(text, domain.KindExercise)

	require.Len(t, cs, 2)
	assert.Equal(t, "Fill in the blank: ___ is the powerhouse of the cell.", cs[0].Stem)
	assert.Equal(t, "The mitochondrion.", cs[0].Answer)
	assert.Equal(t, "True or false: plants make glucose.", cs[1].Stem)
	assert.Equal(t, "True, through photosynthesis.", cs[1].Answer)
}

func TestParse_QuizWithOptionLines(t *testing.T) {
	text := "Question 1: Which planet is the largest?\nA) Mars\nB) Jupiter\nC) Venus\nD) Earth\nAnswer: B\n\n" +
		"Question 2: Which gas do plants absorb?\nA) Oxygen\nB) Nitrogen\nC) Carbon dioxide\nD) Helium\nAnswer: C) Carbon dioxide"

	res := ParseWithMode(text, domain.KindQuiz)

	assert.Equal(t, ModeTagged, res.Mode)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "Which planet is the largest?", res.Candidates[0].Stem)
	assert.Equal(t, []string{"Mars", "Jupiter", "Venus", "Earth"}, res.Candidates[0].Options)
	assert.Equal(t, "Jupiter", res.Candidates[0].Answer)
	assert.Equal(t, "Carbon dioxide", res.Candidates[1].Answer)
}

func TestParse_QuizInlineOptions(t *testing.T) {
	text := "Q: Which planet is the largest? A) Mars B) Jupiter C) Venus D) Earth\nAnswer: jupiter"

	cs := Parse(text, domain.KindQuiz)

	require.Len(t, cs, 1)
	assert.Equal(t, "Which planet is the largest?", cs[0].Stem)
	assert.Equal(t, []string{"Mars", "Jupiter", "Venus", "Earth"}, cs[0].Options)
	assert.Equal(t, "Jupiter", cs[0].Answer)
}

func TestParse_NoBoundariesYieldsNothing(t *testing.T) {
	for _, text := range []string{"", "   \n\n  "} {
		res := ParseWithMode(text, domain.KindFlashcard)
		assert.Equal(t, ModeNone, res.Mode)
		assert.Empty(t, res.Candidates)
	}
}

func TestParse_SingleUnansweredLine(t *testing.T) {
	cs := Parse("Photosynthesis", domain.KindFlashcard)

	require.Len(t, cs, 1)
	assert.Equal(t, "Photosynthesis", cs[0].Stem)
	assert.Empty(t, cs[0].Answer)
}

func TestParse_PreservesSourceOrder(t *testing.T) {
	for _, n := range []int{1, 3, 7, 20} {
		var b strings.Builder
		for i := 1; i <= n; i++ {
			fmt.Fprintf(&b, "%d. What is term number %d?\nTerm %d is a definition.\n", i, i, i)
		}
		text := b.String()

		cs := Parse(text, domain.KindFlashcard)

		require.Len(t, cs, n)
		prevEnd := -1
		for i, c := range cs {
			assert.Equal(t, i, c.Index)
			assert.Equal(t, fmt.Sprintf("What is term number %d?", i+1), c.Stem)
			assert.Greater(t, c.Span.Start, prevEnd)
			assert.Contains(t, text[c.Span.Start:c.Span.End], c.Stem)
			prevEnd = c.Span.End
		}
	}
}
