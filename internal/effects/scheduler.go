// Package effects sweeps expired ActiveEffect records. An effect can outlive
// its ExpiresAt by up to one sweep interval.
package effects

import (
	"context"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/livestate"
	"algo-arena/internal/metrics"
	"algo-arena/internal/notify"

	"github.com/rs/zerolog/log"
)

const schedulerName = "effects"

type Scheduler struct {
	games    *livestate.Games
	effects  *livestate.Effects
	notifier notify.Notifier
	Clock    func() time.Time
}

func NewScheduler(games *livestate.Games, effects *livestate.Effects, n notify.Notifier) *Scheduler {
	return &Scheduler{games: games, effects: effects, notifier: n, Clock: time.Now}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick removes every effect expired at the current instant and reports how
// many this call removed. A failing game is logged and skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	started := time.Now()
	defer metrics.ObserveTick(schedulerName, started)

	now := s.Clock()
	ids, err := s.games.ActiveIDs(ctx)
	if err != nil {
		metrics.SchedulerErrors.WithLabelValues(schedulerName).Inc()
		log.Error().Err(err).Msg("effect sweep: list games")
		return 0
	}
	removed := 0
	for _, gameID := range ids {
		n, err := s.sweepGame(ctx, gameID, now)
		removed += n
		if err != nil {
			metrics.SchedulerErrors.WithLabelValues(schedulerName).Inc()
			log.Error().Err(err).Str("game_id", gameID).Msg("effect sweep failed")
		}
	}
	return removed
}

func (s *Scheduler) sweepGame(ctx context.Context, gameID string, now time.Time) (int, error) {
	list, err := s.effects.List(ctx, gameID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range list {
		if !e.Expired(now) {
			continue
		}
		claimed, ok, err := s.effects.Claim(ctx, gameID, e.ID)
		if err != nil {
			log.Error().Err(err).Str("game_id", gameID).Str("effect_id", e.ID).Msg("effect claim failed")
			continue
		}
		if !ok {
			continue
		}
		removed++
		metrics.EffectsRemoved.WithLabelValues(domain.RemovalExpired).Inc()
		log.Debug().Str("game_id", gameID).Str("effect_id", e.ID).Msg("effect expired")
		notify.Send(ctx, s.notifier, domain.NewEffectRemovedEvent(claimed, domain.RemovalExpired, now))
	}
	return removed, nil
}
