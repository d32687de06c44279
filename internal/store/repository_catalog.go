package store

import (
	"context"

	"algo-arena/internal/domain"
)

func (s *Store) ListAlgorithms(ctx context.Context) ([]Algorithm, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, difficulty FROM algorithms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Algorithm{}
	for rows.Next() {
		var a Algorithm
		if err := rows.Scan(&a.ID, &a.Name, &a.Difficulty); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, price, duration_ms FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) ListSpells(ctx context.Context) ([]Spell, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, price, duration_ms, effect FROM spells ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Spell{}
	for rows.Next() {
		var (
			sp     Spell
			effect string
		)
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Price, &sp.DurationMS, &effect); err != nil {
			return nil, err
		}
		sp.Effect = SpellEffect(effect)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAlgorithm(ctx context.Context, a Algorithm) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO algorithms (id, name, difficulty) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, difficulty = EXCLUDED.difficulty`, a.ID, a.Name, a.Difficulty)
	return err
}

func (s *Store) UpsertItem(ctx context.Context, it Item) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO items (id, name, price, duration_ms) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, duration_ms = EXCLUDED.duration_ms`,
		it.ID, it.Name, it.Price, it.DurationMS)
	return err
}

func (s *Store) UpsertSpell(ctx context.Context, sp Spell) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO spells (id, name, price, duration_ms, effect) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, duration_ms = EXCLUDED.duration_ms, effect = EXCLUDED.effect`,
		sp.ID, sp.Name, sp.Price, sp.DurationMS, string(sp.Effect))
	return err
}

func (s *Store) InsertSubmission(ctx context.Context, sub domain.Submission) error {
	if sub.ID == "" {
		sub.ID = NewID()
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO submissions (id, game_id, user_id, algorithm_id, status, elapsed_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, sub.ID, sub.GameID, sub.UserID, sub.AlgorithmID, sub.Status, sub.ElapsedMS, sub.CreatedAt)
	return err
}

// ListSubmissions returns the judged submissions of a game in arrival order.
func (s *Store) ListSubmissions(ctx context.Context, gameID string) ([]domain.Submission, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, game_id, user_id, algorithm_id, status, elapsed_ms, created_at
		FROM submissions WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Submission{}
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.ID, &sub.GameID, &sub.UserID, &sub.AlgorithmID, &sub.Status, &sub.ElapsedMS, &sub.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
