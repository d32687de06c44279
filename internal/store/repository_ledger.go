package store

import (
	"context"
	"fmt"
	"sort"

	"algo-arena/internal/domain"
	"algo-arena/internal/ledger"

	"github.com/jackc/pgx/v5"
)

var _ ledger.Ledger = (*Store)(nil)

// WithPlayers runs fn in a transaction holding one advisory lock per
// (game, user). Locks are taken in sorted order so overlapping callers
// cannot deadlock; they release on commit or rollback.
func (s *Store) WithPlayers(ctx context.Context, gameID string, userIDs []string, fn func(ledger.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, uid := range sortedUnique(userIDs) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, gameID+":"+uid); err != nil {
			return fmt.Errorf("lock %s/%s: %w", gameID, uid, err)
		}
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ledgerTx struct {
	tx pgx.Tx
}

func purchaseTable(kind domain.AssetKind) string {
	if kind == domain.AssetSpell {
		return "spell_purchases"
	}
	return "item_purchases"
}

func usageTable(kind domain.AssetKind) string {
	if kind == domain.AssetSpell {
		return "spell_usages"
	}
	return "item_usages"
}

func (l *ledgerTx) Purchases(ctx context.Context, gameID, userID string) ([]domain.Purchase, error) {
	rows, err := l.tx.Query(ctx, `SELECT id, 'ITEM', ref_id, quantity, unit_price, total_price, created_at FROM item_purchases WHERE game_id = $1 AND user_id = $2
		UNION ALL
		SELECT id, 'SPELL', ref_id, quantity, unit_price, total_price, created_at FROM spell_purchases WHERE game_id = $1 AND user_id = $2
		ORDER BY created_at, id`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Purchase{}
	for rows.Next() {
		p := domain.Purchase{GameID: gameID, UserID: userID}
		var kind string
		if err := rows.Scan(&p.ID, &kind, &p.RefID, &p.Quantity, &p.UnitPrice, &p.TotalPrice, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Kind = domain.AssetKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *ledgerTx) Usages(ctx context.Context, gameID, userID string) ([]domain.Usage, error) {
	rows, err := l.tx.Query(ctx, `SELECT id, 'ITEM', to_user_id, ref_id, created_at FROM item_usages WHERE game_id = $1 AND from_user_id = $2
		UNION ALL
		SELECT id, 'SPELL', to_user_id, ref_id, created_at FROM spell_usages WHERE game_id = $1 AND from_user_id = $2
		ORDER BY created_at, id`, gameID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Usage{}
	for rows.Next() {
		u := domain.Usage{GameID: gameID, FromUserID: userID}
		var kind string
		if err := rows.Scan(&u.ID, &kind, &u.ToUserID, &u.RefID, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Kind = domain.AssetKind(kind)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (l *ledgerTx) AppendPurchase(ctx context.Context, p domain.Purchase) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO `+purchaseTable(p.Kind)+` (id, game_id, user_id, ref_id, quantity, unit_price, total_price, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, p.ID, p.GameID, p.UserID, p.RefID, p.Quantity, p.UnitPrice, p.TotalPrice, p.CreatedAt)
	return err
}

func (l *ledgerTx) AppendUsage(ctx context.Context, u domain.Usage) error {
	_, err := l.tx.Exec(ctx, `INSERT INTO `+usageTable(u.Kind)+` (id, game_id, from_user_id, to_user_id, ref_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`, u.ID, u.GameID, u.FromUserID, u.ToUserID, u.RefID, u.CreatedAt)
	return err
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
