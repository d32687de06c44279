package catalog

import (
	"context"

	"algo-arena/internal/store"
)

// Seeder writes reference rows.
type Seeder interface {
	UpsertAlgorithm(ctx context.Context, a store.Algorithm) error
	UpsertItem(ctx context.Context, it store.Item) error
	UpsertSpell(ctx context.Context, sp store.Spell) error
}

func DefaultAlgorithms() []store.Algorithm {
	return []store.Algorithm{
		{ID: "bfs", Name: "Breadth-First Search", Difficulty: 1},
		{ID: "binary-search", Name: "Binary Search", Difficulty: 1},
		{ID: "dfs", Name: "Depth-First Search", Difficulty: 1},
		{ID: "dijkstra", Name: "Dijkstra", Difficulty: 2},
		{ID: "dp", Name: "Dynamic Programming", Difficulty: 3},
		{ID: "greedy", Name: "Greedy", Difficulty: 2},
		{ID: "segment-tree", Name: "Segment Tree", Difficulty: 3},
		{ID: "union-find", Name: "Union Find", Difficulty: 2},
	}
}

func DefaultItems() []store.Item {
	return []store.Item{
		{ID: "blind", Name: "Blind", Price: 300, DurationMS: 15000},
		{ID: "freeze", Name: "Freeze", Price: 500, DurationMS: 10000},
		{ID: "ink", Name: "Ink Splash", Price: 200, DurationMS: 20000},
	}
}

func DefaultSpells() []store.Spell {
	return []store.Spell{
		{ID: "cleanse", Name: "Cleanse", Price: 400, DurationMS: 3000, Effect: store.SpellCleanse},
		{ID: "haste", Name: "Haste", Price: 350, DurationMS: 30000, Effect: store.SpellBuff},
		{ID: "shield", Name: "Shield", Price: 600, DurationMS: 0, Effect: store.SpellShield},
	}
}

// SeedDefaults upserts the default reference rows.
func SeedDefaults(ctx context.Context, s Seeder) error {
	for _, a := range DefaultAlgorithms() {
		if err := s.UpsertAlgorithm(ctx, a); err != nil {
			return err
		}
	}
	for _, it := range DefaultItems() {
		if err := s.UpsertItem(ctx, it); err != nil {
			return err
		}
	}
	for _, sp := range DefaultSpells() {
		if err := s.UpsertSpell(ctx, sp); err != nil {
			return err
		}
	}
	return nil
}
