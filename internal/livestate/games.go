package livestate

import (
	"context"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
)

type Games struct {
	es  ephemeral.Store
	ttl TTLs
}

func NewGames(es ephemeral.Store, ttl TTLs) *Games {
	return &Games{es: es, ttl: ttl}
}

// Create writes the players before the game record so a registry scan never
// sees a game without its roster.
func (r *Games) Create(ctx context.Context, g domain.Game, players []domain.GamePlayer) error {
	for _, p := range players {
		if err := hset(ctx, r.es, ephemeral.GamePlayersKey(g.ID), p.UserID, p, r.ttl.Session); err != nil {
			return err
		}
	}
	return put(ctx, r.es, ephemeral.GameKey(g.ID), g, r.ttl.Session)
}

func (r *Games) Get(ctx context.Context, gameID string) (domain.Game, bool, error) {
	return get[domain.Game](ctx, r.es, ephemeral.GameKey(gameID))
}

// Update is the only way the game record changes after creation.
func (r *Games) Update(ctx context.Context, gameID string, fn func(*domain.Game) error) (domain.Game, bool, error) {
	return update(ctx, r.es, ephemeral.GameKey(gameID), fn)
}

// ActiveIDs lists every game that still has a live record.
func (r *Games) ActiveIDs(ctx context.Context) ([]string, error) {
	keys, err := r.es.ScanKeys(ctx, ephemeral.GameKeyPattern)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id, ok := ephemeral.GameIDFromKey(k); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Games) Players(ctx context.Context, gameID string) ([]domain.GamePlayer, error) {
	return hvalues[domain.GamePlayer](ctx, r.es, ephemeral.GamePlayersKey(gameID))
}

func (r *Games) Player(ctx context.Context, gameID, userID string) (domain.GamePlayer, bool, error) {
	return hget[domain.GamePlayer](ctx, r.es, ephemeral.GamePlayersKey(gameID), userID)
}

func (r *Games) UpdatePlayer(ctx context.Context, gameID, userID string, fn func(*domain.GamePlayer) error) (domain.GamePlayer, bool, error) {
	return hupdate(ctx, r.es, ephemeral.GamePlayersKey(gameID), userID, fn)
}

// AddBan stores the ban under the user's slot. It reports false, leaving the
// earlier ban untouched, when the user already banned.
func (r *Games) AddBan(ctx context.Context, b domain.GameBan) (bool, error) {
	return hsetnx(ctx, r.es, ephemeral.GameBansKey(b.GameID), b.UserID, b, r.ttl.Session)
}

func (r *Games) Ban(ctx context.Context, gameID, userID string) (domain.GameBan, bool, error) {
	return hget[domain.GameBan](ctx, r.es, ephemeral.GameBansKey(gameID), userID)
}

func (r *Games) Bans(ctx context.Context, gameID string) ([]domain.GameBan, error) {
	return hvalues[domain.GameBan](ctx, r.es, ephemeral.GameBansKey(gameID))
}

func (r *Games) AddPick(ctx context.Context, p domain.GamePick) (bool, error) {
	return hsetnx(ctx, r.es, ephemeral.GamePicksKey(p.GameID), p.UserID, p, r.ttl.Session)
}

func (r *Games) Pick(ctx context.Context, gameID, userID string) (domain.GamePick, bool, error) {
	return hget[domain.GamePick](ctx, r.es, ephemeral.GamePicksKey(gameID), userID)
}

func (r *Games) Picks(ctx context.Context, gameID string) ([]domain.GamePick, error) {
	return hvalues[domain.GamePick](ctx, r.es, ephemeral.GamePicksKey(gameID))
}

// View is the full ephemeral picture of one game.
type View struct {
	Game    domain.Game
	Players []domain.GamePlayer
	Bans    []domain.GameBan
	Picks   []domain.GamePick
}

func (r *Games) View(ctx context.Context, gameID string) (View, bool, error) {
	g, ok, err := r.Get(ctx, gameID)
	if err != nil || !ok {
		return View{}, ok, err
	}
	v := View{Game: g}
	if v.Players, err = r.Players(ctx, gameID); err != nil {
		return View{}, true, err
	}
	if v.Bans, err = r.Bans(ctx, gameID); err != nil {
		return View{}, true, err
	}
	if v.Picks, err = r.Picks(ctx, gameID); err != nil {
		return View{}, true, err
	}
	return v, true, nil
}

// Delete removes the game's fixed keys. Effects are cleared separately.
func (r *Games) Delete(ctx context.Context, gameID string) error {
	return r.es.Delete(ctx, ephemeral.GameFootprint(gameID)...)
}
