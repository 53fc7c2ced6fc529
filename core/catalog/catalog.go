package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/leofalp/chatrelay/core/cost"
	"github.com/leofalp/chatrelay/providers/ai"
)

// ErrUnknownModel is returned by Resolve for ids that are not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Entry describes one offered model.
type Entry struct {
	// ID is the public identifier callers pass in, e.g. "claude-sonnet-4".
	ID       string          `json:"id" yaml:"id"`
	Provider ai.ProviderKind `json:"provider" yaml:"provider"`
	// NativeName is what the provider API expects in its model field.
	NativeName  string `json:"native_name" yaml:"native_name"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	// Streaming reports native SSE support. Models without it are called
	// one-shot and their reply is relayed as a single final delta.
	Streaming bool `json:"streaming" yaml:"streaming"`
	// ContextWindow is the model's context size in tokens; zero means unknown.
	ContextWindow int            `json:"context_window,omitempty" yaml:"context_window,omitempty"`
	Pricing       cost.ModelCost `json:"pricing" yaml:"pricing"`
}

// Catalog is an ordered, read-only set of entries.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// New builds a catalog, preserving entry order. It rejects empty or duplicate
// ids, empty native names and provider kinds outside the supported set.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		if entry.ID == "" {
			return nil, errors.New("catalog: entry with empty id")
		}
		if _, exists := c.byID[entry.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate model id %q", entry.ID)
		}
		if entry.NativeName == "" {
			return nil, fmt.Errorf("catalog: model %q has no native name", entry.ID)
		}
		if _, err := ai.ParseProviderKind(string(entry.Provider)); err != nil {
			return nil, fmt.Errorf("catalog: model %q: %w", entry.ID, err)
		}
		if entry.DisplayName == "" {
			entry.DisplayName = entry.ID
		}
		c.byID[entry.ID] = len(c.entries)
		c.entries = append(c.entries, entry)
	}
	return c, nil
}

// Resolve returns the entry for id, or an error wrapping ErrUnknownModel.
func (c *Catalog) Resolve(id string) (Entry, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return c.entries[idx], nil
}

// Has reports whether id is offered.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Models returns the offered entries in catalog order. The slice is a copy.
func (c *Catalog) Models() []Entry {
	return slices.Clone(c.entries)
}

// Kinds returns the distinct provider kinds referenced by the catalog, in
// order of first appearance.
func (c *Catalog) Kinds() []ai.ProviderKind {
	var kinds []ai.ProviderKind
	for _, entry := range c.entries {
		if !slices.Contains(kinds, entry.Provider) {
			kinds = append(kinds, entry.Provider)
		}
	}
	return kinds
}

// With returns a new catalog with extra entries appended; an extra entry whose
// id already exists replaces the original in place.
func (c *Catalog) With(extra ...Entry) (*Catalog, error) {
	merged := slices.Clone(c.entries)
	for _, entry := range extra {
		if idx, ok := c.byID[entry.ID]; ok {
			merged[idx] = entry
			continue
		}
		merged = append(merged, entry)
	}
	return New(merged...)
}
