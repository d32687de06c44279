package catalog

import (
	"context"
	"errors"
	"testing"

	"algo-arena/internal/store"
)

type fakeSource struct {
	err error
}

func (f fakeSource) ListAlgorithms(context.Context) ([]store.Algorithm, error) {
	return DefaultAlgorithms(), f.err
}

func (f fakeSource) ListItems(context.Context) ([]store.Item, error) {
	return DefaultItems(), nil
}

func (f fakeSource) ListSpells(context.Context) ([]store.Spell, error) {
	return DefaultSpells(), nil
}

func TestLoadIndexesEveryKind(t *testing.T) {
	c, err := Load(context.Background(), fakeSource{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Algorithm("dp"); !ok {
		t.Fatal("dp missing")
	}
	if it, ok := c.Item("freeze"); !ok || it.Price != 500 {
		t.Fatalf("freeze = %+v %v", it, ok)
	}
	if sp, ok := c.Spell("shield"); !ok || sp.Effect != store.SpellShield {
		t.Fatalf("shield = %+v %v", sp, ok)
	}
	if _, ok := c.Algorithm("quantum"); ok {
		t.Fatal("unknown algorithm resolved")
	}
}

func TestLoadPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Load(context.Background(), fakeSource{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
