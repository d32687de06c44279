// Package catalog holds the static reference data: algorithms that can be
// banned or picked, and the items and spells sold in the shop.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"algo-arena/internal/store"
)

type Catalog interface {
	Algorithm(id string) (store.Algorithm, bool)
	Item(id string) (store.Item, bool)
	Spell(id string) (store.Spell, bool)
	Algorithms() []store.Algorithm
}

// Source is where the catalog is loaded from.
type Source interface {
	ListAlgorithms(ctx context.Context) ([]store.Algorithm, error)
	ListItems(ctx context.Context) ([]store.Item, error)
	ListSpells(ctx context.Context) ([]store.Spell, error)
}

type Static struct {
	algorithms map[string]store.Algorithm
	items      map[string]store.Item
	spells     map[string]store.Spell
}

func NewStatic(algorithms []store.Algorithm, items []store.Item, spells []store.Spell) *Static {
	c := &Static{
		algorithms: make(map[string]store.Algorithm, len(algorithms)),
		items:      make(map[string]store.Item, len(items)),
		spells:     make(map[string]store.Spell, len(spells)),
	}
	for _, a := range algorithms {
		c.algorithms[a.ID] = a
	}
	for _, it := range items {
		c.items[it.ID] = it
	}
	for _, sp := range spells {
		c.spells[sp.ID] = sp
	}
	return c
}

func Load(ctx context.Context, src Source) (*Static, error) {
	algorithms, err := src.ListAlgorithms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load algorithms: %w", err)
	}
	items, err := src.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	spells, err := src.ListSpells(ctx)
	if err != nil {
		return nil, fmt.Errorf("load spells: %w", err)
	}
	return NewStatic(algorithms, items, spells), nil
}

func (c *Static) Algorithm(id string) (store.Algorithm, bool) {
	a, ok := c.algorithms[id]
	return a, ok
}

func (c *Static) Item(id string) (store.Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

func (c *Static) Spell(id string) (store.Spell, bool) {
	sp, ok := c.spells[id]
	return sp, ok
}

// Algorithms returns every algorithm ordered by id.
func (c *Static) Algorithms() []store.Algorithm {
	out := make([]store.Algorithm, 0, len(c.algorithms))
	for _, a := range c.algorithms {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Static) Size() (algorithms, items, spells int) {
	return len(c.algorithms), len(c.items), len(c.spells)
}
