// Package provider adapts model SDKs to domain.TextGenerator and builds the
// cascade catalog from configuration.
package provider

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"studyforge/internal/domain"
)

var statusInText = regexp.MustCompile(`status code:? (\d{3})`)

// wrapError attaches the provider id and status to an SDK error. Context
// errors pass through so the executor can tell cancellation from timeout.
func wrapError(id string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.NewProviderError(id, status, err)
}

// statusFromText recovers an HTTP status from SDKs that only report it in
// the error message.
func statusFromText(err error) int {
	if err == nil {
		return 0
	}
	m := statusInText.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// blocked reports a refusal that retrying cannot fix.
func blocked(id, reason string) error {
	return &domain.ProviderError{Provider: id, Message: reason, Err: domain.ErrFatalProvider}
}
