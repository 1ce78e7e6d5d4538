// Package fallback decides which generation round runs next and how a request
// settles once no further round applies.
package fallback

import (
	"fmt"

	"studyforge/internal/domain"
	"studyforge/internal/prompt"
)

// Progress is the per-request state the policy reads. It is rebuilt by the
// caller after every round.
type Progress struct {
	Origin    domain.Origin
	Requested int
	Accepted  int
	// Candidates counts parsed candidates across every round.
	Candidates int
	// RawProduced is true once any round returned raw text.
	RawProduced bool
	RoundsRun   int
	// Ran lists strategy names already used in this request.
	Ran []string
	// Tried holds every provider id that received an attempt.
	Tried map[string]bool
	// LocalProviders lists local provider ids in cascade order.
	LocalProviders []string
	// LastStop is the stop reason of the most recent exhausted round.
	LastStop string
}

func (p Progress) hasRun(name string) bool {
	for _, n := range p.Ran {
		if n == name {
			return true
		}
	}
	return false
}

// UntriedLocal returns local provider ids that have not been attempted.
func (p Progress) UntriedLocal() []string {
	var out []string
	for _, id := range p.LocalProviders {
		if !p.Tried[id] {
			out = append(out, id)
		}
	}
	return out
}

// Plan is what a strategy asks the next round to do.
type Plan struct {
	Style prompt.Style
	// ProviderIDs restricts the round. Empty means the whole catalog.
	ProviderIDs []string
}

// Strategy is one tier of the fallback ladder.
type Strategy struct {
	Name     string
	Eligible func(Progress) bool
	Plan     func(Progress) Plan
}

const (
	StrategyPrimary    = "primary"
	StrategyLocalRetry = "local-retry"
)

// Primary runs the full catalog once with the standard prompt.
func Primary() Strategy {
	return Strategy{
		Name:     StrategyPrimary,
		Eligible: func(p Progress) bool { return p.RoundsRun == 0 },
		Plan:     func(Progress) Plan { return Plan{Style: prompt.StyleStandard} },
	}
}

// LocalRetry gives topic searches that produced nothing usable one more round
// against local providers not yet tried, with a simpler prompt. Partial
// results never trigger it.
func LocalRetry() Strategy {
	return Strategy{
		Name: StrategyLocalRetry,
		Eligible: func(p Progress) bool {
			return p.Origin == domain.OriginTopicSearch &&
				p.RoundsRun > 0 &&
				p.Accepted == 0 &&
				len(p.UntriedLocal()) > 0
		},
		Plan: func(p Progress) Plan {
			return Plan{Style: prompt.StyleSimple, ProviderIDs: p.UntriedLocal()}
		},
	}
}

// DefaultStrategies is the built-in ladder. It has no rule-based tier; an
// empty result fails closed.
func DefaultStrategies() []Strategy {
	return []Strategy{Primary(), LocalRetry()}
}

// Policy walks an ordered strategy list.
type Policy struct {
	strategies []Strategy
}

// NewPolicy builds a policy. With no strategies it uses DefaultStrategies.
func NewPolicy(strategies ...Strategy) *Policy {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Policy{strategies: strategies}
}

// Strategies returns the ladder in order.
func (p *Policy) Strategies() []Strategy {
	out := make([]Strategy, len(p.strategies))
	copy(out, p.strategies)
	return out
}

// Next returns the first strategy that has not run yet and is eligible.
func (p *Policy) Next(pr Progress) (Strategy, Plan, bool) {
	if pr.Requested > 0 && pr.Accepted >= pr.Requested {
		return Strategy{}, Plan{}, false
	}
	for _, s := range p.strategies {
		if pr.hasRun(s.Name) || !s.Eligible(pr) {
			continue
		}
		return s, s.Plan(pr), true
	}
	return Strategy{}, Plan{}, false
}

// Settle classifies the finished request. A request with nothing accepted is
// never a success: it fails closed when raw text was produced and is provider
// exhausted otherwise.
func Settle(pr Progress) (domain.TerminalStatus, string) {
	switch {
	case pr.Accepted > 0 && pr.Accepted >= pr.Requested:
		return domain.StatusFull, ""
	case pr.Accepted > 0:
		return domain.StatusPartial, fmt.Sprintf("%d of %d items passed validation", pr.Accepted, pr.Requested)
	case pr.RawProduced:
		return domain.StatusEmptyFailClosed, fmt.Sprintf("0 of %d candidates passed validation", pr.Candidates)
	default:
		reason := pr.LastStop
		if reason == "" {
			reason = "no provider produced output"
		}
		return domain.StatusProviderExhausted, reason
	}
}
