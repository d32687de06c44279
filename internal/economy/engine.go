// Package economy derives coin and inventory from the purchase and usage
// ledgers and turns owned items and spells into active effects.
//
// Every decision runs inside ledger.WithPlayers so two concurrent purchases
// by the same player are evaluated one after the other against the balance
// the previous one left behind.
package economy

import (
	"context"
	"time"

	"algo-arena/internal/catalog"
	"algo-arena/internal/domain"
	"algo-arena/internal/ledger"
	"algo-arena/internal/livestate"
	"algo-arena/internal/metrics"
	"algo-arena/internal/notify"
)

type Config struct {
	InitialCoin int64
	MaxItems    int
	MaxSpells   int
}

func DefaultConfig() Config {
	return Config{InitialCoin: 3000, MaxItems: 3, MaxSpells: 2}
}

type Engine struct {
	games    *livestate.Games
	effects  *livestate.Effects
	ledger   ledger.Ledger
	catalog  catalog.Catalog
	notifier notify.Notifier
	cfg      Config
	Clock    func() time.Time
}

func New(games *livestate.Games, effects *livestate.Effects, l ledger.Ledger, cat catalog.Catalog, n notify.Notifier, cfg Config) *Engine {
	return &Engine{
		games:    games,
		effects:  effects,
		ledger:   l,
		catalog:  cat,
		notifier: n,
		cfg:      cfg,
		Clock:    time.Now,
	}
}

// Inventory is what a player can still spend or use in one game.
type Inventory struct {
	GameID string           `json:"game_id"`
	UserID string           `json:"user_id"`
	Coin   int64            `json:"coin"`
	Items  []ledger.Holding `json:"items"`
	Spells []ledger.Holding `json:"spells"`
}

func (e *Engine) inventory(gameID, userID string, s ledger.Summary) Inventory {
	inv := Inventory{GameID: gameID, UserID: userID, Coin: s.Balance(e.cfg.InitialCoin), Items: []ledger.Holding{}, Spells: []ledger.Holding{}}
	for _, h := range s.Holdings() {
		if h.Kind == domain.AssetItem {
			inv.Items = append(inv.Items, h)
		} else {
			inv.Spells = append(inv.Spells, h)
		}
	}
	return inv
}

func (e *Engine) Inventory(ctx context.Context, gameID, userID string) (Inventory, error) {
	if _, err := e.member(ctx, gameID, userID); err != nil {
		return Inventory{}, err
	}
	var inv Inventory
	err := e.ledger.WithPlayers(ctx, gameID, []string{userID}, func(tx ledger.Tx) error {
		s, err := summarize(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		inv = e.inventory(gameID, userID, s)
		return nil
	})
	return inv, err
}

func (e *Engine) ActiveEffects(ctx context.Context, gameID string) ([]domain.ActiveEffect, error) {
	if _, ok, err := e.games.Get(ctx, gameID); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrGameNotFound
	}
	return e.effects.List(ctx, gameID)
}

// member loads the game and checks userID plays in it.
func (e *Engine) member(ctx context.Context, gameID, userID string) (domain.Game, error) {
	g, ok, err := e.games.Get(ctx, gameID)
	if err != nil {
		return domain.Game{}, err
	}
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if _, ok, err := e.games.Player(ctx, gameID, userID); err != nil {
		return domain.Game{}, err
	} else if !ok {
		return domain.Game{}, domain.ErrNotInGame
	}
	return g, nil
}

func (e *Engine) requireStage(ctx context.Context, gameID, userID string, stage domain.Stage) (domain.Game, error) {
	g, err := e.member(ctx, gameID, userID)
	if err != nil {
		return g, err
	}
	if g.Stage == domain.StageFinished {
		return g, domain.ErrAlreadyFinished
	}
	if g.Stage != stage || g.GameType != domain.GameTypeRanked {
		return g, domain.ErrInvalidStageForAction
	}
	return g, nil
}

func summarize(ctx context.Context, tx ledger.Tx, gameID, userID string) (ledger.Summary, error) {
	purchases, err := tx.Purchases(ctx, gameID, userID)
	if err != nil {
		return ledger.Summary{}, err
	}
	usages, err := tx.Usages(ctx, gameID, userID)
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Fold(purchases, usages), nil
}

func (e *Engine) syncInventory(ctx context.Context, inv Inventory, now time.Time) {
	notify.Send(ctx, e.notifier, domain.NewUserEvent(domain.EventInventorySync, inv.GameID, inv.UserID, now, inv))
}

func record(action string, err error) {
	metrics.EconomyActions.WithLabelValues(action, metrics.Outcome(domain.Kind(err))).Inc()
}
