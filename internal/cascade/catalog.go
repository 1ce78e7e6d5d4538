// Package cascade drives generation calls across an ordered catalog of
// providers with bounded, fixed-backoff retries.
package cascade

import (
	"errors"
	"fmt"
	"sort"

	"studyforge/internal/domain"

	"golang.org/x/sync/semaphore"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider id")
	ErrInvalidProvider   = errors.New("invalid provider descriptor")
)

// Provider couples a descriptor with the generator that serves it.
type Provider struct {
	Descriptor domain.ProviderDescriptor
	Generator  domain.TextGenerator

	// slot serializes providers that are not safe for concurrent use.
	slot *semaphore.Weighted
}

// ID returns the provider identifier.
func (p *Provider) ID() string {
	return p.Descriptor.ID
}

// Catalog is the process-wide, read-only provider list. Remote providers come
// first in priority order, local providers last.
type Catalog struct {
	providers []*Provider
	byID      map[string]*Provider
}

// NewCatalog validates and orders the given providers.
func NewCatalog(entries ...Provider) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Provider, len(entries))}
	for i := range entries {
		e := entries[i]
		d := e.Descriptor
		switch {
		case d.ID == "":
			return nil, fmt.Errorf("%w: provider at index %d has no id", ErrInvalidProvider, i)
		case e.Generator == nil:
			return nil, fmt.Errorf("%w: provider %q has no generator", ErrInvalidProvider, d.ID)
		case d.MaxRetries < 1:
			return nil, fmt.Errorf("%w: provider %q max retries must be at least 1", ErrInvalidProvider, d.ID)
		case d.Timeout <= 0:
			return nil, fmt.Errorf("%w: provider %q timeout must be positive", ErrInvalidProvider, d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, d.ID)
		}

		p := &Provider{Descriptor: d, Generator: e.Generator}
		if !d.ConcurrencySafe {
			p.slot = semaphore.NewWeighted(1)
		}
		c.providers = append(c.providers, p)
		c.byID[d.ID] = p
	}

	sort.SliceStable(c.providers, func(i, j int) bool {
		a, b := c.providers[i].Descriptor, c.providers[j].Descriptor
		if a.Local != b.Local {
			return !a.Local
		}
		return a.Priority < b.Priority
	})
	return c, nil
}

// Len returns the number of providers.
func (c *Catalog) Len() int {
	return len(c.providers)
}

// Providers returns the providers in cascade order.
func (c *Catalog) Providers() []*Provider {
	out := make([]*Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Get looks a provider up by id.
func (c *Catalog) Get(id string) (*Provider, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Local returns the local providers in cascade order.
func (c *Catalog) Local() []*Provider {
	var out []*Provider
	for _, p := range c.providers {
		if p.Descriptor.Local {
			out = append(out, p)
		}
	}
	return out
}

// IDs returns provider ids in cascade order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.providers))
	for i, p := range c.providers {
		ids[i] = p.Descriptor.ID
	}
	return ids
}

// Descriptors returns a copy of every descriptor in cascade order.
func (c *Catalog) Descriptors() []domain.ProviderDescriptor {
	out := make([]domain.ProviderDescriptor, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Descriptor
	}
	return out
}

// subset returns the catalog providers whose ids are listed, in cascade order.
func (c *Catalog) subset(ids []string) []*Provider {
	if len(ids) == 0 {
		return c.Providers()
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*Provider
	for _, p := range c.providers {
		if _, ok := want[p.Descriptor.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
