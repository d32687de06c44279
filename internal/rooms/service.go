// Package rooms manages room membership. The durable room row is the
// capacity lock; the ephemeral copy is what readers see.
package rooms

import (
	"context"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	HostChangeLeft = "HOST_LEFT"

	maxCapacity = 8
)

type Durable interface {
	EnsureUser(ctx context.Context, id, name string) error
	CreateRoom(ctx context.Context, room domain.Room, host domain.RoomPlayer) error
	JoinRoom(ctx context.Context, member domain.RoomPlayer) error
	LeaveRoom(ctx context.Context, roomID, userID string, at time.Time) (int, error)
}

type Flusher interface {
	FlushRoom(ctx context.Context, roomID string) error
}

type Service struct {
	rooms    *livestate.Rooms
	games    *livestate.Games
	presence *livestate.Presence
	durable  Durable
	flusher  Flusher
	notifier notify.Notifier
	Clock    func() time.Time
}

func New(rooms *livestate.Rooms, games *livestate.Games, presence *livestate.Presence, durable Durable, flusher Flusher, n notify.Notifier) *Service {
	return &Service{
		rooms:    rooms,
		games:    games,
		presence: presence,
		durable:  durable,
		flusher:  flusher,
		notifier: n,
		Clock:    time.Now,
	}
}

type CreateRoomInput struct {
	Name     string
	GameType domain.GameType
	Language string
	Capacity int
}

func (s *Service) CreateRoom(ctx context.Context, hostUserID string, in CreateRoomInput) (domain.Room, error) {
	if !in.GameType.Valid() {
		return domain.Room{}, domain.ErrInvalidGameType
	}
	if in.Capacity < 1 || in.Capacity > maxCapacity || in.Name == "" || hostUserID == "" {
		return domain.Room{}, domain.ErrInvalidRequest
	}
	if err := s.durable.EnsureUser(ctx, hostUserID, ""); err != nil {
		return domain.Room{}, err
	}
	now := s.Clock()
	room := domain.Room{
		ID:         store.NewID(),
		Name:       in.Name,
		GameType:   in.GameType,
		Language:   in.Language,
		Capacity:   in.Capacity,
		HostUserID: hostUserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	host := domain.RoomPlayer{ID: store.NewID(), RoomID: room.ID, UserID: hostUserID, State: domain.MemberUnready, JoinedAt: now}
	if err := s.durable.CreateRoom(ctx, room, host); err != nil {
		return domain.Room{}, err
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return domain.Room{}, err
	}
	if err := s.rooms.PutMember(ctx, host); err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("room_id", room.ID).Str("user_id", hostUserID).Str("game_type", string(room.GameType)).Msg("room created")
	s.changed(ctx, room, now)
	return room, nil
}

// JoinRoom admits userID unless the room is full, running a game, or has
// kicked them.
func (s *Service) JoinRoom(ctx context.Context, roomID, userID string) (domain.RoomPlayer, error) {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return domain.RoomPlayer{}, err
	}
	if kicked, err := s.rooms.Kicked(ctx, roomID, userID); err != nil {
		return domain.RoomPlayer{}, err
	} else if kicked {
		return domain.RoomPlayer{}, domain.ErrKicked
	}
	if room.ActiveGameID != "" {
		if _, live, err := s.games.Get(ctx, room.ActiveGameID); err != nil {
			return domain.RoomPlayer{}, err
		} else if live {
			return domain.RoomPlayer{}, domain.ErrGameInProgress
		}
	}
	if err := s.durable.EnsureUser(ctx, userID, ""); err != nil {
		return domain.RoomPlayer{}, err
	}
	now := s.Clock()
	member := domain.RoomPlayer{ID: store.NewID(), RoomID: roomID, UserID: userID, State: domain.MemberUnready, JoinedAt: now}
	if err := s.durable.JoinRoom(ctx, member); err != nil {
		return domain.RoomPlayer{}, err
	}
	if err := s.rooms.PutMember(ctx, member); err != nil {
		return domain.RoomPlayer{}, err
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("player joined")
	notify.Send(ctx, s.notifier, roomEvent(domain.EventPlayerJoined, roomID, userID, now, member))
	s.changed(ctx, room, now)
	return member, nil
}

// LeaveRoom ends the user's membership. A departing host hands over to the
// earliest-joined remaining member; the last member out closes the room.
func (s *Service) LeaveRoom(ctx context.Context, roomID, userID string) error {
	return s.leave(ctx, roomID, userID, domain.EventPlayerLeft)
}

func (s *Service) leave(ctx context.Context, roomID, userID string, event domain.EventType) error {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return err
	}
	now := s.Clock()
	remaining, err := s.durable.LeaveRoom(ctx, roomID, userID, now)
	if err != nil {
		return err
	}
	if _, _, err := s.rooms.UpdateMember(ctx, roomID, userID, func(m *domain.RoomPlayer) error {
		if m.LeftAt == nil {
			m.LeftAt = &now
		}
		m.State = domain.MemberUnready
		return nil
	}); err != nil {
		return err
	}
	if err := s.presence.ClearTyping(ctx, roomID, userID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("clear typing")
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Int("remaining", remaining).Msg("player left")
	notify.Send(ctx, s.notifier, roomEvent(event, roomID, userID, now, nil))

	active, err := s.rooms.ActiveMembers(ctx, roomID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		if _, err := s.rooms.BumpListVersion(ctx); err != nil {
			log.Warn().Err(err).Msg("bump room list version")
		}
		return s.flusher.FlushRoom(ctx, roomID)
	}
	if room.HostUserID == userID {
		room, err = s.transferHost(ctx, roomID, userID, active[0].UserID, now)
		if err != nil {
			return err
		}
	}
	s.changed(ctx, room, now)
	return nil
}

func (s *Service) transferHost(ctx context.Context, roomID, from, to string, now time.Time) (domain.Room, error) {
	room, _, err := s.rooms.Update(ctx, roomID, func(r *domain.Room) error {
		if r.HostUserID == from {
			r.HostUserID = to
			r.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	change := domain.HostChange{FromUserID: from, ToUserID: to, Reason: HostChangeLeft, ChangedAt: now}
	if err := s.rooms.AppendHostChange(ctx, roomID, change); err != nil {
		return domain.Room{}, err
	}
	log.Info().Str("room_id", roomID).Str("from", from).Str("to", to).Msg("host changed")
	notify.Send(ctx, s.notifier, roomEvent(domain.EventHostChanged, roomID, to, now, change))
	return room, nil
}

func (s *Service) SetReady(ctx context.Context, roomID, userID string, ready bool) (domain.RoomPlayer, error) {
	if _, err := s.room(ctx, roomID); err != nil {
		return domain.RoomPlayer{}, err
	}
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return domain.RoomPlayer{}, err
	}
	state := domain.MemberUnready
	if ready {
		state = domain.MemberReady
	}
	m, _, err := s.rooms.UpdateMember(ctx, roomID, userID, func(m *domain.RoomPlayer) error {
		m.State = state
		return nil
	})
	if err != nil {
		return domain.RoomPlayer{}, err
	}
	notify.Send(ctx, s.notifier, roomEvent(domain.EventPlayerReady, roomID, userID, s.Clock(), m))
	return m, nil
}

// Kick removes targetUserID and bars them from rejoining this room.
func (s *Service) Kick(ctx context.Context, roomID, hostUserID, targetUserID string) error {
	room, err := s.room(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostUserID != hostUserID {
		return domain.ErrNotHost
	}
	if targetUserID == hostUserID {
		return domain.ErrInvalidTarget
	}
	if _, err := s.activeMember(ctx, roomID, targetUserID); err != nil {
		return err
	}
	if err := s.rooms.Kick(ctx, roomID, targetUserID, s.Clock()); err != nil {
		return err
	}
	return s.leave(ctx, roomID, targetUserID, domain.EventPlayerKicked)
}

func (s *Service) MarkDisconnected(ctx context.Context, roomID, userID string) error {
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return err
	}
	now := s.Clock()
	if _, _, err := s.rooms.UpdateMember(ctx, roomID, userID, func(m *domain.RoomPlayer) error {
		m.DisconnectedAt = &now
		return nil
	}); err != nil {
		return err
	}
	notify.Send(ctx, s.notifier, roomEvent(domain.EventPlayerOffline, roomID, userID, now, nil))
	return nil
}

func (s *Service) SetTyping(ctx context.Context, roomID, userID string) error {
	if _, err := s.activeMember(ctx, roomID, userID); err != nil {
		return err
	}
	now := s.Clock()
	if err := s.presence.SetTyping(ctx, roomID, userID, now); err != nil {
		return err
	}
	notify.Send(ctx, s.notifier, roomEvent(domain.EventTyping, roomID, userID, now, nil))
	return nil
}

// TypingUsers lists who typed within the typing TTL.
func (s *Service) TypingUsers(ctx context.Context, roomID string) ([]string, error) {
	statuses, err := s.presence.Typing(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st.UserID)
	}
	return out, nil
}

func (s *Service) Heartbeat(ctx context.Context, userID string) error {
	return s.presence.Beat(ctx, userID, s.Clock())
}

// IsAlive reports a heartbeat within the heartbeat TTL.
func (s *Service) IsAlive(ctx context.Context, userID string) (bool, error) {
	_, ok, err := s.presence.LastSeen(ctx, userID)
	return ok, err
}

func (s *Service) Members(ctx context.Context, roomID string) ([]domain.RoomPlayer, error) {
	if _, err := s.room(ctx, roomID); err != nil {
		return nil, err
	}
	return s.rooms.ActiveMembers(ctx, roomID)
}

func (s *Service) room(ctx context.Context, roomID string) (domain.Room, error) {
	room, ok, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *Service) activeMember(ctx context.Context, roomID, userID string) (domain.RoomPlayer, error) {
	m, ok, err := s.rooms.Member(ctx, roomID, userID)
	if err != nil {
		return domain.RoomPlayer{}, err
	}
	if !ok || !m.Active() {
		return domain.RoomPlayer{}, domain.ErrNotAMember
	}
	return m, nil
}

// changed bumps the room list version and broadcasts the room.
func (s *Service) changed(ctx context.Context, room domain.Room, now time.Time) {
	if _, err := s.rooms.BumpListVersion(ctx); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("bump room list version")
	}
	notify.Send(ctx, s.notifier, roomEvent(domain.EventRoomUpdated, room.ID, "", now, room))
}

func roomEvent(t domain.EventType, roomID, userID string, now time.Time, data any) domain.Event {
	return domain.Event{Type: t, Topic: domain.RoomTopic(roomID), RoomID: roomID, UserID: userID, Timestamp: domain.Timestamp(now), Data: data}
}
