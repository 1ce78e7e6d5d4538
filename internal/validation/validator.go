package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"studyforge/internal/domain"
	"studyforge/internal/util"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CountBounds limits how many items one request may ask for.
type CountBounds struct {
	Min int
	Max int
}

// Validator provides request validation functionality
type Validator struct {
	count CountBounds
}

// NewValidator creates a new validator instance
func NewValidator(count CountBounds) *Validator {
	if count.Min <= 0 {
		count.Min = 1
	}
	if count.Max < count.Min {
		count.Max = count.Min
	}
	return &Validator{count: count}
}

// CountBounds returns the accepted item-count range.
func (v *Validator) CountBounds() CountBounds {
	return v.count
}

type generationRules struct {
	SourceText string `validate:"required"`
	Kind       string `validate:"required,oneof=flashcard quiz exercise"`
	Origin     string `validate:"required,oneof=document topic-search"`
	Language   string `validate:"omitempty,max=32"`
}

// ValidateGenerationRequest checks a request before it enters the pipeline.
func (v *Validator) ValidateGenerationRequest(req domain.GenerationRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors

	rules := generationRules{
		SourceText: strings.TrimSpace(req.SourceText),
		Kind:       string(req.Kind),
		Origin:     string(req.Origin),
		Language:   req.Language,
	}
	errs = append(errs, structErrors(validate.Struct(rules))...)

	tag := fmt.Sprintf("min=%d,max=%d", v.count.Min, v.count.Max)
	if err := validate.Var(req.Count, tag); err != nil {
		errs = append(errs, domain.NewOutOfRangeError("count", req.Count, v.count.Min, v.count.Max))
	}
	return errs
}

// ValidateTopic checks a free-form topic query.
func (v *Validator) ValidateTopic(topic string) domain.ValidationErrors {
	var errs domain.ValidationErrors

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return append(errs, domain.NewMissingFieldError("topic"))
	}
	if n := utf8.RuneCountInString(topic); n < 3 || n > 200 {
		errs = append(errs, domain.NewOutOfRangeError("topic", n, 3, 200))
	}
	return errs
}

// ValidateRunID checks a run identifier.
func (v *Validator) ValidateRunID(id string) domain.ValidationErrors {
	var errs domain.ValidationErrors

	if strings.TrimSpace(id) == "" {
		errs = append(errs, domain.NewMissingFieldError("id"))
	} else if !util.IsULID(id) {
		errs = append(errs, domain.NewInvalidFormatError("id", id))
	}
	return errs
}

func structErrors(err error) domain.ValidationErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ValidationErrors{{Field: "request", Message: err.Error()}}
	}
	out := make(domain.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, domain.NewMissingFieldError(field))
		default:
			out = append(out, domain.NewInvalidFormatError(field, fe.Value()))
		}
	}
	return out
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
