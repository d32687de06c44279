// Package snapshot writes the ephemeral view of a game or room to the
// durable store and, once the session is over, drops the ephemeral keys.
// Both flushes are safe to repeat.
package snapshot

import (
	"context"
	"fmt"

	"algo-arena/internal/domain"
	"algo-arena/internal/livestate"
	"algo-arena/internal/metrics"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// Durable is the part of the durable store the writer needs.
type Durable interface {
	SaveGameSnapshot(ctx context.Context, snap store.GameSnapshot) (store.SnapshotResult, error)
	SaveRoomSnapshot(ctx context.Context, room domain.Room, members []domain.RoomPlayer, closed bool) error
}

type Writer struct {
	games   *livestate.Games
	effects *livestate.Effects
	rooms   *livestate.Rooms
	ranking *livestate.Ranking
	durable Durable
}

func NewWriter(games *livestate.Games, effects *livestate.Effects, rooms *livestate.Rooms, ranking *livestate.Ranking, durable Durable) *Writer {
	return &Writer{games: games, effects: effects, rooms: rooms, ranking: ranking, durable: durable}
}

// FlushGame persists the game view. For a FINISHED game it also refreshes
// the ranking from the durable scores and deletes the game's ephemeral
// footprint. A game no longer in the ephemeral store was already flushed.
func (w *Writer) FlushGame(ctx context.Context, gameID string) error {
	err := w.flushGame(ctx, gameID)
	metrics.Flushes.WithLabelValues("game", outcome(err)).Inc()
	return err
}

func (w *Writer) flushGame(ctx context.Context, gameID string) error {
	view, ok, err := w.games.View(ctx, gameID)
	if err != nil {
		return fmt.Errorf("read game %s: %w", gameID, err)
	}
	if !ok {
		return nil
	}
	res, err := w.durable.SaveGameSnapshot(ctx, store.GameSnapshot{
		Game:    view.Game,
		Players: view.Players,
		Bans:    view.Bans,
		Picks:   view.Picks,
	})
	if err != nil {
		return fmt.Errorf("save game %s: %w", gameID, err)
	}
	if view.Game.Stage != domain.StageFinished {
		log.Debug().Str("game_id", gameID).Str("stage", string(view.Game.Stage)).Msg("game snapshot saved")
		return nil
	}
	for userID, score := range res.Scores {
		if err := w.ranking.Set(ctx, userID, score); err != nil {
			return fmt.Errorf("ranking %s: %w", userID, err)
		}
	}
	if _, _, err := w.rooms.Update(ctx, view.Game.RoomID, func(r *domain.Room) error {
		if r.ActiveGameID == gameID {
			r.ActiveGameID = ""
		}
		return nil
	}); err != nil {
		return fmt.Errorf("release room %s: %w", view.Game.RoomID, err)
	}
	if err := w.effects.ClearGame(ctx, gameID); err != nil {
		return fmt.Errorf("clear effects %s: %w", gameID, err)
	}
	if err := w.games.Delete(ctx, gameID); err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	metrics.GameFinished()
	log.Info().Str("game_id", gameID).Int("applied", res.Applied).Int("players", len(view.Players)).Msg("game flushed")
	return nil
}

// FlushRoom persists the room and every membership row. A room without
// active members is closed durably and removed from the ephemeral store.
func (w *Writer) FlushRoom(ctx context.Context, roomID string) error {
	err := w.flushRoom(ctx, roomID)
	metrics.Flushes.WithLabelValues("room", outcome(err)).Inc()
	return err
}

func (w *Writer) flushRoom(ctx context.Context, roomID string) error {
	room, ok, err := w.rooms.Get(ctx, roomID)
	if err != nil {
		return fmt.Errorf("read room %s: %w", roomID, err)
	}
	if !ok {
		return nil
	}
	members, err := w.rooms.Members(ctx, roomID)
	if err != nil {
		return fmt.Errorf("read members %s: %w", roomID, err)
	}
	closed := true
	for _, m := range members {
		if m.Active() {
			closed = false
			break
		}
	}
	if err := w.durable.SaveRoomSnapshot(ctx, room, members, closed); err != nil {
		return fmt.Errorf("save room %s: %w", roomID, err)
	}
	if !closed {
		return nil
	}
	if err := w.rooms.Delete(ctx, roomID); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	metrics.RoomFlushed()
	log.Info().Str("room_id", roomID).Int("members", len(members)).Msg("room flushed")
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
