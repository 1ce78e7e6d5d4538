package service

import (
	"context"
	"errors"
	"strings"

	"studyforge/internal/domain"

	"golang.org/x/sync/errgroup"
)

// ParseKinds keeps the known kinds of raw in order, without repeats. Entries
// may be comma separated. When none is known it falls back to flashcards.
func ParseKinds(raw []string) []domain.ItemKind {
	seen := make(map[domain.ItemKind]bool, len(raw))
	var kinds []domain.ItemKind
	for _, entry := range raw {
		for _, r := range strings.Split(entry, ",") {
			k := domain.ParseItemKind(r)
			if !k.Valid() || seen[k] {
				continue
			}
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return []domain.ItemKind{domain.KindFlashcard}
	}
	return kinds
}

// GenerateKinds runs one pipeline per kind over the same source, in parallel,
// and returns the results in the order of kinds. Each kind settles its own
// terminal status. The error is set only when no kind delivered anything: a
// request-level error such as a validation failure is returned as is,
// otherwise fail-closed wins over provider exhaustion.
func GenerateKinds(ctx context.Context, svc GenerationService, req domain.GenerationRequest, kinds []domain.ItemKind) ([]domain.KindResult, error) {
	results := make([]domain.KindResult, len(kinds))
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			r := req
			r.ID = ""
			r.Kind = kind
			outcome, err := svc.Generate(ctx, r)
			results[i] = domain.KindResult{Kind: kind, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Delivered() > 0 {
			return results, nil
		}
	}

	var failClosed, exhausted error
	for _, r := range results {
		switch {
		case r.Err == nil:
		case errors.Is(r.Err, domain.ErrFailClosed):
			if failClosed == nil {
				failClosed = r.Err
			}
		case errors.Is(r.Err, domain.ErrProviderExhausted):
			if exhausted == nil {
				exhausted = r.Err
			}
		default:
			return results, r.Err
		}
	}
	if failClosed != nil {
		return results, failClosed
	}
	return results, exhausted
}
