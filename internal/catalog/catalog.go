// ABOUTME: TOML-backed model catalog with aliases and per-model limits
// ABOUTME: Merges locally curated entries with the provider's live model list

package catalog

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/2389/parley/internal/provider"
)

// Entry is one curated model in the catalog file.
type Entry struct {
	ID          string `toml:"id"`
	Alias       string `toml:"alias"`
	DisplayName string `toml:"display_name"`
	MaxTokens   int    `toml:"max_tokens"`
}

// Catalog holds the curated model entries.
type Catalog struct {
	Models []Entry `toml:"model"`
}

// Load reads a catalog file. An empty path yields an empty catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}

	var cat Catalog
	if _, err := toml.DecodeFile(path, &cat); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	for i, m := range cat.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog %s: entry %d has no id", path, i)
		}
	}
	return &cat, nil
}

// Resolve maps a model ID or alias to its entry.
func (c *Catalog) Resolve(nameOrAlias string) (Entry, bool) {
	for _, m := range c.Models {
		if m.ID == nameOrAlias || (m.Alias != "" && m.Alias == nameOrAlias) {
			return m, true
		}
	}
	return Entry{}, false
}

// ResolveID returns the canonical model ID for a name, passing through
// names the catalog does not know.
func (c *Catalog) ResolveID(nameOrAlias string) string {
	if entry, ok := c.Resolve(nameOrAlias); ok {
		return entry.ID
	}
	return nameOrAlias
}

// Merge combines catalog entries with the provider's live model list.
// Catalog entries come first and win on display name; provider models
// absent from the catalog follow in their original order.
func (c *Catalog) Merge(live []provider.ModelInfo) []Entry {
	out := make([]Entry, 0, len(c.Models)+len(live))
	seen := make(map[string]bool, len(c.Models))

	for _, m := range c.Models {
		out = append(out, m)
		seen[m.ID] = true
	}
	for _, m := range live {
		if seen[m.ID] {
			continue
		}
		out = append(out, Entry{ID: m.ID, DisplayName: m.DisplayName})
	}
	return out
}
