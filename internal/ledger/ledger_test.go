package ledger

import (
	"context"
	"errors"
	"testing"

	"algo-arena/internal/domain"
)

func TestFoldDerivesBalanceAndRemaining(t *testing.T) {
	purchases := []domain.Purchase{
		{Kind: domain.AssetItem, RefID: "freeze", Quantity: 2, UnitPrice: 100, TotalPrice: 200},
		{Kind: domain.AssetSpell, RefID: "shield", Quantity: 1, UnitPrice: 300, TotalPrice: 300},
	}
	usages := []domain.Usage{{Kind: domain.AssetItem, RefID: "freeze"}}
	s := Fold(purchases, usages)
	if s.Balance(3000) != 2500 {
		t.Fatalf("balance = %d", s.Balance(3000))
	}
	if s.Remaining(Ref{Kind: domain.AssetItem, ID: "freeze"}) != 1 {
		t.Fatalf("remaining freeze = %d", s.Remaining(Ref{Kind: domain.AssetItem, ID: "freeze"}))
	}
	if s.Held(domain.AssetItem) != 1 || s.Held(domain.AssetSpell) != 1 {
		t.Fatalf("held items=%d spells=%d", s.Held(domain.AssetItem), s.Held(domain.AssetSpell))
	}
	h := s.Holdings()
	if len(h) != 2 || h[0].Kind != domain.AssetItem || h[1].RefID != "shield" {
		t.Fatalf("holdings = %+v", h)
	}
}

func TestHoldingsOmitExhausted(t *testing.T) {
	s := Fold(
		[]domain.Purchase{{Kind: domain.AssetItem, RefID: "ink", Quantity: 1, TotalPrice: 50}},
		[]domain.Usage{{Kind: domain.AssetItem, RefID: "ink"}},
	)
	if len(s.Holdings()) != 0 {
		t.Fatalf("exhausted item listed: %+v", s.Holdings())
	}
	if s.Balance(3000) != 2950 {
		t.Fatalf("usage must not refund: %d", s.Balance(3000))
	}
}

func TestMemoryDiscardsAppendsOnError(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")
	err := m.WithPlayers(ctx, "g1", []string{"u1"}, func(tx Tx) error {
		_ = tx.AppendPurchase(ctx, domain.Purchase{GameID: "g1", UserID: "u1", TotalPrice: 10})
		rows, _ := tx.Purchases(ctx, "g1", "u1")
		if len(rows) != 1 {
			t.Fatalf("staged purchase must be visible inside the tx, got %d", len(rows))
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	p, _ := m.Snapshot()
	if len(p) != 0 {
		t.Fatalf("rolled back purchase persisted: %+v", p)
	}
}
