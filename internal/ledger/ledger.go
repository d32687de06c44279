// Package ledger folds the append-only purchase and usage records into
// balances and holdings. Nothing here stores a mutable counter.
package ledger

import (
	"context"
	"sort"

	"algo-arena/internal/domain"
)

// Tx is the view of the ledgers available while player locks are held.
type Tx interface {
	Purchases(ctx context.Context, gameID, userID string) ([]domain.Purchase, error)
	Usages(ctx context.Context, gameID, userID string) ([]domain.Usage, error)
	AppendPurchase(ctx context.Context, p domain.Purchase) error
	AppendUsage(ctx context.Context, u domain.Usage) error
}

// Ledger serialises decisions per (game, user). WithPlayers holds the locks
// of every listed user for the duration of fn; appends made through the Tx
// commit together when fn returns nil.
type Ledger interface {
	WithPlayers(ctx context.Context, gameID string, userIDs []string, fn func(Tx) error) error
}

type Ref struct {
	Kind domain.AssetKind
	ID   string
}

// Summary is the derived state of one player's ledgers.
type Summary struct {
	Spent     int64
	Purchased map[Ref]int
	Used      map[Ref]int
}

// Fold derives a Summary. Usages count against the user that spent them.
func Fold(purchases []domain.Purchase, usages []domain.Usage) Summary {
	s := Summary{Purchased: map[Ref]int{}, Used: map[Ref]int{}}
	for _, p := range purchases {
		s.Spent += p.TotalPrice
		s.Purchased[Ref{Kind: p.Kind, ID: p.RefID}] += p.Quantity
	}
	for _, u := range usages {
		s.Used[Ref{Kind: u.Kind, ID: u.RefID}]++
	}
	return s
}

func (s Summary) Balance(initial int64) int64 {
	return initial - s.Spent
}

func (s Summary) Remaining(r Ref) int {
	return s.Purchased[r] - s.Used[r]
}

// Held is the total remaining count across every id of a kind.
func (s Summary) Held(kind domain.AssetKind) int {
	n := 0
	for r := range s.Purchased {
		if r.Kind == kind {
			if left := s.Remaining(r); left > 0 {
				n += left
			}
		}
	}
	return n
}

type Holding struct {
	Kind      domain.AssetKind `json:"kind"`
	RefID     string           `json:"ref_id"`
	Remaining int              `json:"remaining"`
}

// Holdings lists refs with remaining > 0, items before spells, then by id.
func (s Summary) Holdings() []Holding {
	out := []Holding{}
	for r := range s.Purchased {
		if left := s.Remaining(r); left > 0 {
			out = append(out, Holding{Kind: r.Kind, RefID: r.ID, Remaining: left})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == domain.AssetItem
		}
		return out[i].RefID < out[j].RefID
	})
	return out
}
