package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
func (c *Chain) Execute(ctx context.Context, req Request) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, req)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Settings describes one configured filter.
type Settings struct {
	Enabled  bool
	Settings map[string]any
}

// NewChainFromConfig builds a chain from the enabled entries of cfg.
// Filters are added in name order so the chain is deterministic.
func NewChainFromConfig(cfg map[string]Settings) (*Chain, error) {
	chain := NewChain()
	for _, name := range sortedNames(cfg) {
		entry := cfg[name]
		if !entry.Enabled {
			continue
		}
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		if err := f.ValidateConfig(entry.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
	}
	return chain, nil
}

func sortedNames(cfg map[string]Settings) []string {
	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
