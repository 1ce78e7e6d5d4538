package validation

import (
	"strings"

	"studyforge/internal/domain"
	"studyforge/internal/preamble"
)

// Thresholds are the per-kind quality bounds for candidate items.
type Thresholds struct {
	MaxStemLength   int `mapstructure:"max_stem_length" validate:"gt=0"`
	MinAnswerLength int `mapstructure:"min_answer_length" validate:"gte=0"`
	MinOptions      int `mapstructure:"min_options" validate:"gte=0"`
	MaxOptions      int `mapstructure:"max_options" validate:"gte=0"`
}

// DefaultThresholds returns the built-in bounds for every item kind.
func DefaultThresholds() map[domain.ItemKind]Thresholds {
	return map[domain.ItemKind]Thresholds{
		domain.KindFlashcard: {MaxStemLength: 300, MinAnswerLength: 10},
		domain.KindQuiz:      {MaxStemLength: 400, MinAnswerLength: 1, MinOptions: 4, MaxOptions: 4},
		domain.KindExercise:  {MaxStemLength: 500, MinAnswerLength: 3},
	}
}

// Normalize folds case and collapses whitespace for duplicate detection.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AcceptedSet holds the normalized stems accepted so far in one request. It
// is request-scoped state and is not safe for concurrent use.
type AcceptedSet struct {
	stems map[string]struct{}
}

// NewAcceptedSet returns an empty set.
func NewAcceptedSet() *AcceptedSet {
	return &AcceptedSet{stems: make(map[string]struct{})}
}

// Contains reports whether a normalized-equal stem was already accepted.
func (s *AcceptedSet) Contains(stem string) bool {
	_, ok := s.stems[Normalize(stem)]
	return ok
}

// Add records stem as accepted.
func (s *AcceptedSet) Add(stem string) {
	s.stems[Normalize(stem)] = struct{}{}
}

// Len returns the number of accepted stems.
func (s *AcceptedSet) Len() int {
	return len(s.stems)
}

// ItemValidator applies the per-kind quality rules to candidates.
type ItemValidator struct {
	thresholds map[domain.ItemKind]Thresholds
	stripper   *preamble.Stripper
}

// NewItemValidator creates a validator. Kinds missing from thresholds use the
// defaults; a nil stripper uses the default preamble rules.
func NewItemValidator(thresholds map[domain.ItemKind]Thresholds, stripper *preamble.Stripper) *ItemValidator {
	merged := DefaultThresholds()
	for k, t := range thresholds {
		merged[k] = t
	}
	if stripper == nil {
		stripper = preamble.New()
	}
	return &ItemValidator{thresholds: merged, stripper: stripper}
}

// Thresholds returns the bounds used for kind.
func (v *ItemValidator) Thresholds(kind domain.ItemKind) Thresholds {
	return v.thresholds[kind]
}

// Validate judges one candidate against the rules in order; the first failing
// rule is the rejection reason. accepted is read but not modified.
func (v *ItemValidator) Validate(c domain.CandidateItem, accepted *AcceptedSet) domain.ValidationVerdict {
	verdict := domain.ValidationVerdict{CandidateIndex: c.Index}
	if reason := v.check(c, accepted); reason != domain.ReasonNone {
		verdict.Reason = reason
		return verdict
	}
	verdict.Accepted = true
	return verdict
}

func (v *ItemValidator) check(c domain.CandidateItem, accepted *AcceptedSet) domain.RejectionReason {
	t := v.thresholds[c.Kind]
	stem := strings.TrimSpace(c.Stem)
	answer := strings.TrimSpace(c.Answer)

	if v.stripper.IsPreamble(stem) {
		return domain.ReasonPreamble
	}

	if t.MaxStemLength > 0 && len([]rune(stem)) > t.MaxStemLength {
		return domain.ReasonStemTooLong
	}
	if len([]rune(answer)) < t.MinAnswerLength {
		return domain.ReasonAnswerTooShort
	}

	if !hasTerminalPunctuation(stem, c.Kind) {
		return domain.ReasonBadFormat
	}
	if c.Kind == domain.KindQuiz {
		if reason := checkOptions(c, t); reason != domain.ReasonNone {
			return reason
		}
	}

	if accepted != nil && stem != "" && accepted.Contains(stem) {
		return domain.ReasonDuplicate
	}

	if stem == "" || (answer == "" && len(c.Options) == 0) {
		return domain.ReasonEmpty
	}
	return domain.ReasonNone
}

func hasTerminalPunctuation(stem string, kind domain.ItemKind) bool {
	stem = strings.TrimRight(stem, `"')]*`)
	if kind.QuestionStyle() {
		return strings.HasSuffix(stem, "?")
	}
	return strings.HasSuffix(stem, ".") || strings.HasSuffix(stem, "!") || strings.HasSuffix(stem, "?")
}

func checkOptions(c domain.CandidateItem, t Thresholds) domain.RejectionReason {
	n := 0
	seen := make(map[string]struct{}, len(c.Options))
	for _, o := range c.Options {
		key := Normalize(o)
		if key == "" {
			return domain.ReasonMalformedOptions
		}
		if _, dup := seen[key]; dup {
			return domain.ReasonMalformedOptions
		}
		seen[key] = struct{}{}
		n++
	}
	if n < t.MinOptions || (t.MaxOptions > 0 && n > t.MaxOptions) {
		return domain.ReasonMalformedOptions
	}
	if n > 0 {
		if _, ok := seen[Normalize(c.Answer)]; !ok {
			return domain.ReasonMalformedOptions
		}
	}
	return domain.ReasonNone
}

// ValidateAll judges candidates in order, threading accepted so later
// duplicates of earlier accepted stems are rejected. It returns one verdict
// per candidate and the accepted candidates in their original order.
func (v *ItemValidator) ValidateAll(candidates []domain.CandidateItem, accepted *AcceptedSet, round int) ([]domain.ValidationVerdict, []domain.CandidateItem) {
	if accepted == nil {
		accepted = NewAcceptedSet()
	}
	verdicts := make([]domain.ValidationVerdict, 0, len(candidates))
	var kept []domain.CandidateItem
	for _, c := range candidates {
		verdict := v.Validate(c, accepted)
		verdict.Round = round
		verdicts = append(verdicts, verdict)
		if verdict.Accepted {
			accepted.Add(c.Stem)
			kept = append(kept, c)
		}
	}
	return verdicts, kept
}
