package domain

import (
	"strings"
	"time"
)

// ItemKind is the type of study item requested.
type ItemKind string

const (
	KindFlashcard ItemKind = "flashcard"
	KindQuiz      ItemKind = "quiz"
	KindExercise  ItemKind = "exercise"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	switch k {
	case KindFlashcard, KindQuiz, KindExercise:
		return true
	}
	return false
}

// ParseItemKind normalizes case and surrounding space. The result may still be
// invalid.
func ParseItemKind(s string) ItemKind {
	return ItemKind(strings.ToLower(strings.TrimSpace(s)))
}

// QuestionStyle reports whether stems of this kind are phrased as questions.
// Exercises are statement-style prompts.
func (k ItemKind) QuestionStyle() bool {
	return k == KindFlashcard || k == KindQuiz
}

// Difficulty tags the requested depth of the generated content.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty maps free-form input onto a known difficulty, defaulting to
// beginner for anything unrecognized.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyIntermediate:
		return DifficultyIntermediate
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyBeginner
	}
}

// Origin records where the source text came from. It governs fallback leniency.
type Origin string

const (
	OriginDocument    Origin = "document"
	OriginTopicSearch Origin = "topic-search"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginDocument || o == OriginTopicSearch
}

// GenerationRequest is immutable once created. It is passed by value through
// the pipeline.
type GenerationRequest struct {
	ID         string
	SourceText string
	Count      int
	Kind       ItemKind
	Difficulty Difficulty
	Origin     Origin
	Language   string
	// Deadline bounds the whole request. Zero means no request-level deadline.
	Deadline time.Time
}

// Span is a half-open byte range [Start, End) in the cleaned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CandidateItem is a parsed, not yet validated study item.
type CandidateItem struct {
	Index   int
	Kind    ItemKind
	Stem    string
	Answer  string
	Options []string
	Span    Span
}

// RejectionReason explains why a candidate was rejected.
type RejectionReason string

const (
	ReasonNone             RejectionReason = ""
	ReasonPreamble         RejectionReason = "preamble"
	ReasonStemTooLong      RejectionReason = "stem_too_long"
	ReasonAnswerTooShort   RejectionReason = "answer_too_short"
	ReasonBadFormat        RejectionReason = "bad_format"
	ReasonMalformedOptions RejectionReason = "malformed_options"
	ReasonDuplicate        RejectionReason = "duplicate"
	ReasonEmpty            RejectionReason = "empty"
)

// ValidationVerdict is produced once per candidate.
type ValidationVerdict struct {
	CandidateIndex int             `json:"candidate_index"`
	Round          int             `json:"round"`
	Accepted       bool            `json:"accepted"`
	Reason         RejectionReason `json:"reason,omitempty"`
}

// StudyItem is an accepted candidate as delivered to the caller.
type StudyItem struct {
	Kind       ItemKind   `json:"kind"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Options    []string   `json:"options,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
}

// NewStudyItem converts an accepted candidate into a deliverable item.
func NewStudyItem(c CandidateItem, difficulty Difficulty) StudyItem {
	var options []string
	if len(c.Options) > 0 {
		options = append(options, c.Options...)
	}
	return StudyItem{
		Kind:       c.Kind,
		Question:   c.Stem,
		Answer:     c.Answer,
		Options:    options,
		Difficulty: difficulty,
	}
}

// TerminalStatus is the final classification of a generation request.
type TerminalStatus string

const (
	StatusFull              TerminalStatus = "full"
	StatusPartial           TerminalStatus = "partial"
	StatusEmptyFailClosed   TerminalStatus = "empty-fail-closed"
	StatusProviderExhausted TerminalStatus = "provider-exhausted"
)

// Success reports whether the status carries usable items.
func (s TerminalStatus) Success() bool {
	return s == StatusFull || s == StatusPartial
}

// GenerationOutcome is the result of one generation request.
type GenerationOutcome struct {
	RequestID     string              `json:"request_id"`
	Kind          ItemKind            `json:"kind"`
	Difficulty    Difficulty          `json:"difficulty"`
	Origin        Origin              `json:"origin"`
	Items         []StudyItem         `json:"items"`
	Requested     int                 `json:"requested"`
	Delivered     int                 `json:"delivered"`
	Status        TerminalStatus      `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Attempts      []AttemptRecord     `json:"attempts"`
	Verdicts      []ValidationVerdict `json:"verdicts"`
	Rounds        int                 `json:"rounds"`
	Cached        bool                `json:"cached"`
	CreatedAt     time.Time           `json:"created_at"`
}

// KindResult is the outcome of one item kind within a multi-kind generation.
type KindResult struct {
	Kind    ItemKind
	Outcome *GenerationOutcome
	Err     error
}

// Delivered reports how many items the kind produced.
func (r KindResult) Delivered() int {
	if r.Outcome == nil {
		return 0
	}
	return r.Outcome.Delivered
}
