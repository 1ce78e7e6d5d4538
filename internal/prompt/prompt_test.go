package prompt

import (
	"strings"
	"testing"

	"studyforge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_IncludesRequestFields(t *testing.T) {
	b, err := NewBuilder(0)
	require.NoError(t, err)

	for _, kind := range []domain.ItemKind{domain.KindFlashcard, domain.KindQuiz, domain.KindExercise} {
		for _, style := range []Style{StyleStandard, StyleSimple} {
			req := domain.GenerationRequest{
				SourceText: "Mitochondria produce ATP.",
				Count:      7,
				Kind:       kind,
				Difficulty: domain.DifficultyAdvanced,
				Origin:     domain.OriginDocument,
				Language:   "Spanish",
			}

			p, err := b.Build(req, style)

			require.NoError(t, err)
			assert.Contains(t, p, "7")
			assert.Contains(t, p, "Mitochondria produce ATP.")
			assert.Contains(t, p, "Spanish")
			if style == StyleStandard {
				assert.Contains(t, p, "advanced")
			}
		}
	}
}

func TestBuild_TopicWordingDiffers(t *testing.T) {
	b, err := NewBuilder(0)
	require.NoError(t, err)
	req := domain.GenerationRequest{SourceText: "Volcanoes", Count: 3, Kind: domain.KindFlashcard, Origin: domain.OriginTopicSearch}

	topic, err := b.Build(req, StyleStandard)
	require.NoError(t, err)
	req.Origin = domain.OriginDocument
	doc, err := b.Build(req, StyleStandard)
	require.NoError(t, err)

	assert.Contains(t, topic, "about the topic")
	assert.Contains(t, doc, "content below")
}

func TestBuild_UnknownKind(t *testing.T) {
	b, err := NewBuilder(0)
	require.NoError(t, err)

	_, err = b.Build(domain.GenerationRequest{Kind: "essay"}, StyleStandard)
	assert.Error(t, err)
}

func TestBuild_TruncatesSource(t *testing.T) {
	b, err := NewBuilder(50)
	require.NoError(t, err)
	source := strings.Repeat("alpha beta ", 40)

	p, err := b.Build(domain.GenerationRequest{SourceText: source, Count: 1, Kind: domain.KindFlashcard}, StyleStandard)

	require.NoError(t, err)
	assert.NotContains(t, p, source)
	assert.Contains(t, p, "alpha beta")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "one two", Truncate("one two three", 9))
	assert.Equal(t, "ééé", Truncate("éééééé", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
