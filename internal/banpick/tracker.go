// Package banpick records the one ban and one pick each player gets per
// ranked game. The first submission wins; later ones are rejected.
package banpick

import (
	"context"
	"time"

	"algo-arena/internal/catalog"
	"algo-arena/internal/domain"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

type Tracker struct {
	games    *livestate.Games
	catalog  catalog.Catalog
	notifier notify.Notifier
	Clock    func() time.Time
}

func New(games *livestate.Games, cat catalog.Catalog, n notify.Notifier) *Tracker {
	return &Tracker{games: games, catalog: cat, notifier: n, Clock: time.Now}
}

func (t *Tracker) SubmitBan(ctx context.Context, gameID, userID, algorithmID string) (domain.GameBan, error) {
	if err := t.precheck(ctx, gameID, userID, algorithmID, domain.StageBan); err != nil {
		return domain.GameBan{}, err
	}
	if _, ok, err := t.games.Ban(ctx, gameID, userID); err != nil {
		return domain.GameBan{}, err
	} else if ok {
		return domain.GameBan{}, domain.ErrDuplicateSubmission
	}
	now := t.Clock()
	ban := domain.GameBan{ID: store.NewID(), GameID: gameID, UserID: userID, AlgorithmID: algorithmID, CreatedAt: now}
	added, err := t.games.AddBan(ctx, ban)
	if err != nil {
		return domain.GameBan{}, err
	}
	if !added {
		return domain.GameBan{}, domain.ErrDuplicateSubmission
	}
	log.Debug().Str("game_id", gameID).Str("user_id", userID).Str("algorithm_id", algorithmID).Msg("ban recorded")
	ev := domain.NewGameEvent(domain.EventBanSubmitted, gameID, now, ban)
	ev.UserID = userID
	notify.Send(ctx, t.notifier, ev)
	return ban, nil
}

// SubmitPick rejects algorithms any player has banned.
func (t *Tracker) SubmitPick(ctx context.Context, gameID, userID, algorithmID string) (domain.GamePick, error) {
	if err := t.precheck(ctx, gameID, userID, algorithmID, domain.StagePick); err != nil {
		return domain.GamePick{}, err
	}
	if _, ok, err := t.games.Pick(ctx, gameID, userID); err != nil {
		return domain.GamePick{}, err
	} else if ok {
		return domain.GamePick{}, domain.ErrDuplicateSubmission
	}
	bans, err := t.games.Bans(ctx, gameID)
	if err != nil {
		return domain.GamePick{}, err
	}
	for _, b := range bans {
		if b.AlgorithmID == algorithmID {
			return domain.GamePick{}, domain.ErrAlgorithmBanned
		}
	}
	now := t.Clock()
	pick := domain.GamePick{ID: store.NewID(), GameID: gameID, UserID: userID, AlgorithmID: algorithmID, CreatedAt: now}
	added, err := t.games.AddPick(ctx, pick)
	if err != nil {
		return domain.GamePick{}, err
	}
	if !added {
		return domain.GamePick{}, domain.ErrDuplicateSubmission
	}
	log.Debug().Str("game_id", gameID).Str("user_id", userID).Str("algorithm_id", algorithmID).Msg("pick recorded")
	ev := domain.NewGameEvent(domain.EventPickSubmitted, gameID, now, pick)
	ev.UserID = userID
	notify.Send(ctx, t.notifier, ev)
	return pick, nil
}

func (t *Tracker) precheck(ctx context.Context, gameID, userID, algorithmID string, stage domain.Stage) error {
	g, ok, err := t.games.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrGameNotFound
	}
	if g.Stage == domain.StageFinished {
		return domain.ErrAlreadyFinished
	}
	if g.Stage != stage {
		return domain.ErrInvalidStageForAction
	}
	if _, ok, err := t.games.Player(ctx, gameID, userID); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotInGame
	}
	if _, ok := t.catalog.Algorithm(algorithmID); !ok {
		return domain.ErrUnknownAlgorithm
	}
	return nil
}
