package store

import (
	"context"
	"time"

	"algo-arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	RoomStatusOpen   = "open"
	RoomStatusClosed = "closed"
)

// CreateRoom inserts the room together with the host's membership.
func (s *Store) CreateRoom(ctx context.Context, room domain.Room, host domain.RoomPlayer) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO rooms (id, name, game_type, language, capacity, host_user_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		room.ID, room.Name, string(room.GameType), room.Language, room.Capacity, room.HostUserID, RoomStatusOpen, room.CreatedAt, room.UpdatedAt); err != nil {
		return err
	}
	if err := insertMember(ctx, tx, host); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// JoinRoom admits a member while holding the room row lock, so concurrent
// joins cannot overfill the room.
func (s *Store) JoinRoom(ctx context.Context, member domain.RoomPlayer) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		capacity int
		status   string
	)
	if err := tx.QueryRow(ctx, `SELECT capacity, status FROM rooms WHERE id = $1 FOR UPDATE`, member.RoomID).Scan(&capacity, &status); err != nil {
		if mapNotFound(err) == ErrNotFound {
			return domain.ErrRoomNotFound
		}
		return err
	}
	if status != RoomStatusOpen {
		return domain.ErrRoomNotFound
	}
	var active, mine int
	if err := tx.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE user_id = $2)
		FROM room_players WHERE room_id = $1 AND left_at IS NULL`, member.RoomID, member.UserID).Scan(&active, &mine); err != nil {
		return err
	}
	if mine > 0 {
		return domain.ErrAlreadyJoined
	}
	if active >= capacity {
		return domain.ErrRoomFull
	}
	if err := insertMember(ctx, tx, member); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LeaveRoom closes the user's active membership and reports how many
// members remain.
func (s *Store) LeaveRoom(ctx context.Context, roomID, userID string, at time.Time) (int, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&id); err != nil {
		if mapNotFound(err) == ErrNotFound {
			return 0, domain.ErrRoomNotFound
		}
		return 0, err
	}
	tag, err := tx.Exec(ctx, `UPDATE room_players SET left_at = $3 WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`, roomID, userID, at)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, domain.ErrNotAMember
	}
	var remaining int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM room_players WHERE room_id = $1 AND left_at IS NULL`, roomID).Scan(&remaining); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return remaining, nil
}

// SaveRoomSnapshot upserts the room and every membership row. A closed
// room stops admitting joins.
func (s *Store) SaveRoomSnapshot(ctx context.Context, room domain.Room, members []domain.RoomPlayer, closed bool) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status := RoomStatusOpen
	if closed {
		status = RoomStatusClosed
	}
	if _, err := tx.Exec(ctx, `INSERT INTO rooms (id, name, game_type, language, capacity, host_user_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, host_user_id = EXCLUDED.host_user_id,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		room.ID, room.Name, string(room.GameType), room.Language, room.Capacity, room.HostUserID, status, room.CreatedAt, room.UpdatedAt); err != nil {
		return err
	}
	for _, m := range members {
		if _, err := tx.Exec(ctx, `INSERT INTO room_players (id, room_id, user_id, state, joined_at, left_at, disconnected_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state,
				left_at = COALESCE(room_players.left_at, EXCLUDED.left_at),
				disconnected_at = EXCLUDED.disconnected_at`,
			m.ID, m.RoomID, m.UserID, string(m.State), m.JoinedAt, timeParam(m.LeftAt), timeParam(m.DisconnectedAt)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (domain.Room, string, error) {
	var (
		r      domain.Room
		gt     string
		status string
	)
	err := s.Pool.QueryRow(ctx, `SELECT id, name, game_type, language, capacity, host_user_id, status, created_at, updated_at FROM rooms WHERE id = $1`, roomID).
		Scan(&r.ID, &r.Name, &gt, &r.Language, &r.Capacity, &r.HostUserID, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Room{}, "", mapNotFound(err)
	}
	r.GameType = domain.GameType(gt)
	return r, status, nil
}

func (s *Store) ListRoomMembers(ctx context.Context, roomID string) ([]domain.RoomPlayer, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, room_id, user_id, state, joined_at, left_at, disconnected_at
		FROM room_players WHERE room_id = $1 ORDER BY joined_at, id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.RoomPlayer{}
	for rows.Next() {
		var (
			m            domain.RoomPlayer
			state        string
			left, discon pgtype.Timestamptz
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &state, &m.JoinedAt, &left, &discon); err != nil {
			return nil, err
		}
		m.State = domain.MemberState(state)
		m.LeftAt = timePtrVal(left)
		m.DisconnectedAt = timePtrVal(discon)
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertMember(ctx context.Context, tx pgx.Tx, m domain.RoomPlayer) error {
	_, err := tx.Exec(ctx, `INSERT INTO room_players (id, room_id, user_id, state, joined_at) VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.RoomID, m.UserID, string(m.State), m.JoinedAt)
	return err
}
