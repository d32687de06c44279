// Package app assembles the session engine from its stores and config.
package app

import (
	"context"
	"time"

	"algo-arena/internal/banpick"
	"algo-arena/internal/catalog"
	"algo-arena/internal/config"
	"algo-arena/internal/domain"
	"algo-arena/internal/economy"
	"algo-arena/internal/effects"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/ledger"
	"algo-arena/internal/lifecycle"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"
	"algo-arena/internal/rooms"
	"algo-arena/internal/snapshot"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const rankingRebuildLimit = 10000

// Durable is everything the engine asks of the durable store.
type Durable interface {
	ledger.Ledger
	rooms.Durable
	lifecycle.Durable
	snapshot.Durable
	ListScores(ctx context.Context, limit int) ([]domain.PlayerAggregate, error)
}

type Arena struct {
	Games     *livestate.Games
	RoomState *livestate.Rooms
	Effects   *livestate.Effects
	Presence  *livestate.Presence
	Ranking   *livestate.Ranking

	Rooms     *rooms.Service
	Lifecycle *lifecycle.Service
	BanPick   *banpick.Tracker
	Economy   *economy.Engine
	Expiry    *effects.Scheduler
	Snapshots *snapshot.Writer

	durable Durable
	cfg     config.EngineConfig
}

func New(cfg config.EngineConfig, durable Durable, es ephemeral.Store, cat catalog.Catalog, n notify.Notifier) *Arena {
	ttl := livestate.TTLs{Session: cfg.SessionTTL, Typing: cfg.TypingTTL, Heartbeat: cfg.HeartbeatTTL}
	a := &Arena{
		Games:     livestate.NewGames(es, ttl),
		RoomState: livestate.NewRooms(es, ttl),
		Effects:   livestate.NewEffects(es, cfg.EffectGrace),
		Presence:  livestate.NewPresence(es, ttl),
		Ranking:   livestate.NewRanking(es),
		durable:   durable,
		cfg:       cfg,
	}
	a.Snapshots = snapshot.NewWriter(a.Games, a.Effects, a.RoomState, a.Ranking, durable)
	a.Rooms = rooms.New(a.RoomState, a.Games, a.Presence, durable, a.Snapshots, n)
	a.Lifecycle = lifecycle.New(a.Games, a.RoomState, durable, a.Snapshots, cat, n, LifecycleConfig(cfg))
	a.BanPick = banpick.New(a.Games, cat, n)
	a.Economy = economy.New(a.Games, a.Effects, durable, cat, n, economy.Config{
		InitialCoin: cfg.InitialCoin,
		MaxItems:    cfg.MaxItems,
		MaxSpells:   cfg.MaxSpells,
	})
	a.Expiry = effects.NewScheduler(a.Games, a.Effects, n)
	return a
}

func LifecycleConfig(cfg config.EngineConfig) lifecycle.Config {
	lc := lifecycle.DefaultConfig()
	lc.Durations = domain.StageDurations{
		Ban:  cfg.BanDuration,
		Pick: cfg.PickDuration,
		Shop: cfg.ShopDuration,
		Play: cfg.PlayDuration,
	}
	lc.Rewards.NormalCoin = cfg.NormalCoinReward
	lc.Rewards.NormalExp = cfg.NormalExpReward
	if cfg.FlushRetryMaxBackoff > 0 {
		lc.FlushRetryMax = cfg.FlushRetryMaxBackoff
	}
	return lc
}

// RebuildRanking reloads the ranking set from durable scores, for a fresh
// ephemeral store.
func (a *Arena) RebuildRanking(ctx context.Context) (int, error) {
	users, err := a.durable.ListScores(ctx, rankingRebuildLimit)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if err := a.Ranking.Set(ctx, u.UserID, u.Score); err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

// Run drives both schedulers until ctx is cancelled or one fails.
func (a *Arena) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Dur("interval", a.cfg.StageTick).Msg("stage scheduler started")
		return a.Lifecycle.Run(ctx, a.cfg.StageTick)
	})
	g.Go(func() error {
		log.Info().Dur("interval", a.cfg.EffectTick).Msg("effect scheduler started")
		return a.Expiry.Run(ctx, a.cfg.EffectTick)
	})
	return g.Wait()
}

// SetClock pins every service to one clock.
func (a *Arena) SetClock(clock func() time.Time) {
	a.Rooms.Clock = clock
	a.Lifecycle.Clock = clock
	a.BanPick.Clock = clock
	a.Economy.Clock = clock
	a.Expiry.Clock = clock
}
