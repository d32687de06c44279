package livestate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
)

type Rooms struct {
	es  ephemeral.Store
	ttl TTLs
}

func NewRooms(es ephemeral.Store, ttl TTLs) *Rooms {
	return &Rooms{es: es, ttl: ttl}
}

func (r *Rooms) Create(ctx context.Context, room domain.Room) error {
	return put(ctx, r.es, ephemeral.RoomKey(room.ID), room, r.ttl.Session)
}

func (r *Rooms) Get(ctx context.Context, roomID string) (domain.Room, bool, error) {
	return get[domain.Room](ctx, r.es, ephemeral.RoomKey(roomID))
}

func (r *Rooms) Update(ctx context.Context, roomID string, fn func(*domain.Room) error) (domain.Room, bool, error) {
	return update(ctx, r.es, ephemeral.RoomKey(roomID), fn)
}

// PutMember writes the user's membership row, replacing a previous left row.
func (r *Rooms) PutMember(ctx context.Context, p domain.RoomPlayer) error {
	return hset(ctx, r.es, ephemeral.RoomPlayersKey(p.RoomID), p.UserID, p, r.ttl.Session)
}

func (r *Rooms) Member(ctx context.Context, roomID, userID string) (domain.RoomPlayer, bool, error) {
	return hget[domain.RoomPlayer](ctx, r.es, ephemeral.RoomPlayersKey(roomID), userID)
}

func (r *Rooms) UpdateMember(ctx context.Context, roomID, userID string, fn func(*domain.RoomPlayer) error) (domain.RoomPlayer, bool, error) {
	return hupdate(ctx, r.es, ephemeral.RoomPlayersKey(roomID), userID, fn)
}

// Members returns every membership row, active or not, earliest join first.
func (r *Rooms) Members(ctx context.Context, roomID string) ([]domain.RoomPlayer, error) {
	out, err := hvalues[domain.RoomPlayer](ctx, r.es, ephemeral.RoomPlayersKey(roomID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r *Rooms) ActiveMembers(ctx context.Context, roomID string) ([]domain.RoomPlayer, error) {
	all, err := r.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Rooms) Kick(ctx context.Context, roomID, userID string, at time.Time) error {
	return hset(ctx, r.es, ephemeral.RoomKicksKey(roomID), userID, at, r.ttl.Session)
}

func (r *Rooms) Kicked(ctx context.Context, roomID, userID string) (bool, error) {
	_, ok, err := r.es.HGet(ctx, ephemeral.RoomKicksKey(roomID), userID)
	return ok, err
}

// AppendHostChange records a host handover; fields sort chronologically.
func (r *Rooms) AppendHostChange(ctx context.Context, roomID string, c domain.HostChange) error {
	field := fmt.Sprintf("%020d", c.ChangedAt.UnixNano())
	return hset(ctx, r.es, ephemeral.RoomHostHistoryKey(roomID), field, c, r.ttl.Session)
}

func (r *Rooms) HostHistory(ctx context.Context, roomID string) ([]domain.HostChange, error) {
	return hvalues[domain.HostChange](ctx, r.es, ephemeral.RoomHostHistoryKey(roomID))
}

// BumpListVersion invalidates cached room listings.
func (r *Rooms) BumpListVersion(ctx context.Context) (int64, error) {
	return r.es.Incr(ctx, ephemeral.RoomListVersionKey)
}

func (r *Rooms) ListVersion(ctx context.Context) (int64, error) {
	b, ok, err := r.es.Get(ctx, ephemeral.RoomListVersionKey)
	if err != nil || !ok {
		return 0, err
	}
	var n int64
	if _, err := fmt.Sscan(string(b), &n); err != nil {
		return 0, fmt.Errorf("decode %s: %w", ephemeral.RoomListVersionKey, err)
	}
	return n, nil
}

func (r *Rooms) Delete(ctx context.Context, roomID string) error {
	return r.es.Delete(ctx, ephemeral.RoomFootprint(roomID)...)
}
