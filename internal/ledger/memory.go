package ledger

import (
	"context"
	"sync"

	"algo-arena/internal/domain"
)

// Memory is an in-process Ledger. A single mutex stands in for the
// per-player locks; staged appends are discarded when fn fails.
type Memory struct {
	mu        sync.Mutex
	purchases []domain.Purchase
	usages    []domain.Usage
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WithPlayers(ctx context.Context, gameID string, userIDs []string, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{m: m}
	if err := fn(tx); err != nil {
		return err
	}
	m.purchases = append(m.purchases, tx.purchases...)
	m.usages = append(m.usages, tx.usages...)
	return nil
}

// Snapshot returns copies of every row, for assertions.
func (m *Memory) Snapshot() ([]domain.Purchase, []domain.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Purchase(nil), m.purchases...), append([]domain.Usage(nil), m.usages...)
}

type memoryTx struct {
	m         *Memory
	purchases []domain.Purchase
	usages    []domain.Usage
}

func (t *memoryTx) Purchases(_ context.Context, gameID, userID string) ([]domain.Purchase, error) {
	out := []domain.Purchase{}
	for _, rows := range [][]domain.Purchase{t.m.purchases, t.purchases} {
		for _, p := range rows {
			if p.GameID == gameID && p.UserID == userID {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (t *memoryTx) Usages(_ context.Context, gameID, userID string) ([]domain.Usage, error) {
	out := []domain.Usage{}
	for _, rows := range [][]domain.Usage{t.m.usages, t.usages} {
		for _, u := range rows {
			if u.GameID == gameID && u.FromUserID == userID {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (t *memoryTx) AppendPurchase(_ context.Context, p domain.Purchase) error {
	t.purchases = append(t.purchases, p)
	return nil
}

func (t *memoryTx) AppendUsage(_ context.Context, u domain.Usage) error {
	t.usages = append(t.usages, u)
	return nil
}
