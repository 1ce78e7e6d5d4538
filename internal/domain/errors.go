package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Generation specific errors
	CodeProviderExhausted   ErrorCode = "PROVIDER_EXHAUSTED"
	CodeFailClosed          ErrorCode = "FAIL_CLOSED"
	CodeUnsupportedDocument ErrorCode = "UNSUPPORTED_DOCUMENT"
)

// Per-attempt failure taxonomy. Adapters wrap these (or a ProviderError) so the
// attempt executor can classify the outcome.
var (
	ErrRateLimited       = errors.New("provider rate limited the request")
	ErrTransientProvider = errors.New("transient provider failure")
	ErrFatalProvider     = errors.New("fatal provider failure")
)

// Terminal failures surfaced to callers.
var (
	ErrProviderExhausted = errors.New("no provider produced usable output")
	ErrFailClosed        = errors.New("generated content did not pass validation")
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithContext attaches a diagnostic key/value pair and returns the same error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Context: e.Context,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(CodeInternal, message, err)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

func NewUnsupportedDocumentError(filename string) *DomainError {
	return NewError(CodeUnsupportedDocument, fmt.Sprintf("Unsupported document type: %s", filename), nil)
}

// NewProviderExhaustedError reports that no provider produced raw text. Callers
// should retry later.
func NewProviderExhaustedError(reason string) *DomainError {
	return NewError(CodeProviderExhausted, "Generation providers are unavailable, retry later", fmt.Errorf("%w: %s", ErrProviderExhausted, reason))
}

// NewFailClosedError reports that text was produced but nothing survived
// validation.
func NewFailClosedError(reason string) *DomainError {
	return NewError(CodeFailClosed, "Content unavailable for this input, try again", fmt.Errorf("%w: %s", ErrFailClosed, reason))
}

// NewValidationError reports every invalid field of a request.
func NewValidationError(errs ValidationErrors) *DomainError {
	return NewError(CodeValidation, errs.Error(), errs).WithContext("fields", []ValidationError(errs))
}

// ValidationError describes one invalid request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field of a request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "field is required"}
}

func NewOutOfRangeError(field string, value interface{}, min, max int) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max), Value: value}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Message: "invalid format", Value: value}
}
