// Package lifecycle starts games and moves them along their stage graph.
// The scheduler polls; a stage ends on the first tick at or after its
// deadline.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"algo-arena/internal/catalog"
	"algo-arena/internal/domain"
	"algo-arena/internal/livestate"
	"algo-arena/internal/metrics"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// Durable is the slice of the durable store the lifecycle reads and writes.
type Durable interface {
	GetUsers(ctx context.Context, ids []string) (map[string]domain.PlayerAggregate, error)
	SetActiveGame(ctx context.Context, gameID string, userIDs []string) error
	ListSubmissions(ctx context.Context, gameID string) ([]domain.Submission, error)
}

type Flusher interface {
	FlushGame(ctx context.Context, gameID string) error
}

type Config struct {
	Durations      domain.StageDurations
	Rewards        Rewards
	FlushRetryBase time.Duration
	FlushRetryMax  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Durations:      domain.DefaultStageDurations(),
		Rewards:        DefaultRewards(),
		FlushRetryBase: time.Second,
		FlushRetryMax:  time.Minute,
	}
}

type Service struct {
	games    *livestate.Games
	rooms    *livestate.Rooms
	durable  Durable
	flusher  Flusher
	catalog  catalog.Catalog
	notifier notify.Notifier
	cfg      Config
	Clock    func() time.Time

	mu      sync.Mutex
	retries map[string]retryState
}

func New(games *livestate.Games, rooms *livestate.Rooms, durable Durable, flusher Flusher, cat catalog.Catalog, n notify.Notifier, cfg Config) *Service {
	if cfg.FlushRetryBase <= 0 {
		cfg.FlushRetryBase = time.Second
	}
	if cfg.FlushRetryMax < cfg.FlushRetryBase {
		cfg.FlushRetryMax = cfg.FlushRetryBase
	}
	return &Service{
		games:    games,
		rooms:    rooms,
		durable:  durable,
		flusher:  flusher,
		catalog:  cat,
		notifier: n,
		cfg:      cfg,
		Clock:    time.Now,
		retries:  map[string]retryState{},
	}
}

var errRoomBusy = errors.New("room busy")

// StartGame creates a game in LOBBY for every active member of the room.
// Only the host may start it and every other member must be READY. An
// empty gameType uses the room's.
func (s *Service) StartGame(ctx context.Context, roomID, hostUserID string, gameType domain.GameType) (domain.Game, error) {
	room, ok, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return domain.Game{}, err
	}
	if !ok {
		return domain.Game{}, domain.ErrRoomNotFound
	}
	if gameType == "" {
		gameType = room.GameType
	}
	if !gameType.Valid() {
		return domain.Game{}, domain.ErrInvalidGameType
	}
	if room.HostUserID != hostUserID {
		return domain.Game{}, domain.ErrNotHost
	}
	members, err := s.rooms.ActiveMembers(ctx, roomID)
	if err != nil {
		return domain.Game{}, err
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != hostUserID && m.State != domain.MemberReady {
			return domain.Game{}, domain.ErrPlayersNotReady
		}
		userIDs = append(userIDs, m.UserID)
	}

	stale := room.ActiveGameID
	if stale != "" {
		if _, live, err := s.games.Get(ctx, stale); err != nil {
			return domain.Game{}, err
		} else if live {
			return domain.Game{}, domain.ErrGameInProgress
		}
	}
	now := s.Clock()
	g := domain.Game{
		ID:             store.NewID(),
		RoomID:         roomID,
		GameType:       gameType,
		Stage:          domain.StageLobby,
		StageStartedAt: now,
		StartedAt:      now,
	}
	if _, _, err := s.rooms.Update(ctx, roomID, func(r *domain.Room) error {
		if r.ActiveGameID != stale {
			return errRoomBusy
		}
		r.ActiveGameID = g.ID
		r.UpdatedAt = now
		return nil
	}); err != nil {
		if errors.Is(err, errRoomBusy) {
			return domain.Game{}, domain.ErrGameInProgress
		}
		return domain.Game{}, err
	}

	if err := s.createGame(ctx, g, userIDs, now); err != nil {
		s.release(ctx, roomID, g.ID)
		return domain.Game{}, err
	}
	metrics.GameStarted()
	log.Info().Str("game_id", g.ID).Str("room_id", roomID).Str("game_type", string(gameType)).Int("players", len(userIDs)).Msg("game started")
	notify.Send(ctx, s.notifier, domain.Event{
		Type:      domain.EventGameStarted,
		Topic:     domain.RoomTopic(roomID),
		GameID:    g.ID,
		RoomID:    roomID,
		Timestamp: domain.Timestamp(now),
		Data:      g,
	})
	notify.Send(ctx, s.notifier, domain.NewStageEvent(g, now))
	return g, nil
}

func (s *Service) createGame(ctx context.Context, g domain.Game, userIDs []string, now time.Time) error {
	aggregates, err := s.durable.GetUsers(ctx, userIDs)
	if err != nil {
		return err
	}
	players := make([]domain.GamePlayer, 0, len(userIDs))
	for _, uid := range userIDs {
		p := domain.GamePlayer{GameID: g.ID, UserID: uid, PreScore: domain.DefaultScore, JoinedAt: now}
		if agg, ok := aggregates[uid]; ok {
			p.PreScore, p.PreCoin, p.PreExp = agg.Score, agg.Coin, agg.Exp
		}
		players = append(players, p)
	}
	if err := s.durable.SetActiveGame(ctx, g.ID, userIDs); err != nil {
		return err
	}
	return s.games.Create(ctx, g, players)
}

func (s *Service) release(ctx context.Context, roomID, gameID string) {
	_, _, err := s.rooms.Update(ctx, roomID, func(r *domain.Room) error {
		if r.ActiveGameID == gameID {
			r.ActiveGameID = ""
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("game_id", gameID).Msg("release room claim")
	}
}

// GameView is the live state of a game; RemainingMS and Timestamp come
// from the same instant.
type GameView struct {
	Game        domain.Game         `json:"game"`
	Players     []domain.GamePlayer `json:"players"`
	Bans        []domain.GameBan    `json:"bans"`
	Picks       []domain.GamePick   `json:"picks"`
	RemainingMS int64               `json:"remaining_ms"`
	Timestamp   string              `json:"timestamp"`
}

func (s *Service) GameView(ctx context.Context, gameID string) (GameView, error) {
	v, ok, err := s.games.View(ctx, gameID)
	if err != nil {
		return GameView{}, err
	}
	if !ok {
		return GameView{}, domain.ErrGameNotFound
	}
	now := s.Clock()
	return GameView{
		Game:        v.Game,
		Players:     v.Players,
		Bans:        v.Bans,
		Picks:       v.Picks,
		RemainingMS: v.Game.RemainingMS(now),
		Timestamp:   domain.Timestamp(now),
	}, nil
}

func (s *Service) ActiveGameIDs(ctx context.Context) ([]string, error) {
	return s.games.ActiveIDs(ctx)
}
