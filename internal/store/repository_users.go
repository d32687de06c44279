package store

import (
	"context"

	"algo-arena/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) EnsureUser(ctx context.Context, id, name string) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, name)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.PlayerAggregate, error) {
	var (
		u      domain.PlayerAggregate
		active pgtype.Text
	)
	err := s.Pool.QueryRow(ctx, `SELECT id, name, score, coin, exp, active_game_id FROM users WHERE id = $1`, id).
		Scan(&u.UserID, &u.Name, &u.Score, &u.Coin, &u.Exp, &active)
	if err != nil {
		return domain.PlayerAggregate{}, mapNotFound(err)
	}
	u.ActiveGameID = textVal(active)
	return u, nil
}

// GetUsers returns the aggregates of the ids that exist.
func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]domain.PlayerAggregate, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, score, coin, exp, active_game_id FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]domain.PlayerAggregate, len(ids))
	for rows.Next() {
		var (
			u      domain.PlayerAggregate
			active pgtype.Text
		)
		if err := rows.Scan(&u.UserID, &u.Name, &u.Score, &u.Coin, &u.Exp, &active); err != nil {
			return nil, err
		}
		u.ActiveGameID = textVal(active)
		out[u.UserID] = u
	}
	return out, rows.Err()
}

func (s *Store) SetActiveGame(ctx context.Context, gameID string, userIDs []string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE users SET active_game_id = $1, updated_at = now() WHERE id = ANY($2)`, gameID, userIDs)
	return err
}

// ListScores returns the best scores, used to rebuild the ranking set.
func (s *Store) ListScores(ctx context.Context, limit int) ([]domain.PlayerAggregate, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, name, score FROM users ORDER BY score DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.PlayerAggregate{}
	for rows.Next() {
		var u domain.PlayerAggregate
		if err := rows.Scan(&u.UserID, &u.Name, &u.Score); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
