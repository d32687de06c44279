package economy

import (
	"context"

	"algo-arena/internal/domain"
	"algo-arena/internal/ledger"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

type offer struct {
	kind     domain.AssetKind
	refID    string
	price    int64
	limit    int
	limitErr error
	event    domain.EventType
}

func (e *Engine) PurchaseItem(ctx context.Context, gameID, userID, itemID string, quantity int) (domain.Purchase, error) {
	item, ok := e.catalog.Item(itemID)
	if !ok {
		record("purchase_item", domain.ErrItemNotFound)
		return domain.Purchase{}, domain.ErrItemNotFound
	}
	p, err := e.purchase(ctx, gameID, userID, quantity, offer{
		kind:     domain.AssetItem,
		refID:    item.ID,
		price:    item.Price,
		limit:    e.cfg.MaxItems,
		limitErr: domain.ErrItemLimit,
		event:    domain.EventItemPurchased,
	})
	record("purchase_item", err)
	return p, err
}

func (e *Engine) PurchaseSpell(ctx context.Context, gameID, userID, spellID string, quantity int) (domain.Purchase, error) {
	spell, ok := e.catalog.Spell(spellID)
	if !ok {
		record("purchase_spell", domain.ErrSpellNotFound)
		return domain.Purchase{}, domain.ErrSpellNotFound
	}
	p, err := e.purchase(ctx, gameID, userID, quantity, offer{
		kind:     domain.AssetSpell,
		refID:    spell.ID,
		price:    spell.Price,
		limit:    e.cfg.MaxSpells,
		limitErr: domain.ErrSpellLimit,
		event:    domain.EventSpellPurchased,
	})
	record("purchase_spell", err)
	return p, err
}

// purchase checks funds and the holding cap against the ledgers as they
// stand while the player's lock is held; nothing is written on rejection.
func (e *Engine) purchase(ctx context.Context, gameID, userID string, quantity int, o offer) (domain.Purchase, error) {
	if quantity <= 0 {
		return domain.Purchase{}, domain.ErrInvalidQuantity
	}
	if _, err := e.requireStage(ctx, gameID, userID, domain.StageShop); err != nil {
		return domain.Purchase{}, err
	}
	var (
		bought domain.Purchase
		inv    Inventory
	)
	now := e.Clock()
	err := e.ledger.WithPlayers(ctx, gameID, []string{userID}, func(tx ledger.Tx) error {
		s, err := summarize(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if quantity > o.limit-s.Held(o.kind) {
			return o.limitErr
		}
		// Dividing keeps price*quantity from wrapping.
		balance := s.Balance(e.cfg.InitialCoin)
		if balance < 0 || (o.price > 0 && int64(quantity) > balance/o.price) {
			return domain.ErrInsufficientFunds
		}
		total := o.price * int64(quantity)
		bought = domain.Purchase{
			ID:         store.NewID(),
			GameID:     gameID,
			UserID:     userID,
			Kind:       o.kind,
			RefID:      o.refID,
			Quantity:   quantity,
			UnitPrice:  o.price,
			TotalPrice: total,
			CreatedAt:  now,
		}
		if err := tx.AppendPurchase(ctx, bought); err != nil {
			return err
		}
		s.Spent += total
		s.Purchased[ledger.Ref{Kind: o.kind, ID: o.refID}] += quantity
		inv = e.inventory(gameID, userID, s)
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	log.Info().Str("game_id", gameID).Str("user_id", userID).Str("ref_id", o.refID).Int("quantity", quantity).Int64("total", bought.TotalPrice).Msg("purchase recorded")
	notify.Send(ctx, e.notifier, domain.NewUserEvent(o.event, gameID, userID, now, bought))
	e.syncInventory(ctx, inv, now)
	return bought, nil
}
