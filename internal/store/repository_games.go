package store

import (
	"context"

	"algo-arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type GameSnapshot struct {
	Game    domain.Game
	Players []domain.GamePlayer
	Bans    []domain.GameBan
	Picks   []domain.GamePick
}

// SnapshotResult carries the post-flush durable scores of the game's players
// and how many aggregates this call applied.
type SnapshotResult struct {
	Scores  map[string]int64
	Applied int
}

// SaveGameSnapshot persists a game view in one transaction. Re-running it
// with the same view changes nothing: ban and pick rows keep their first
// id, settlement columns are write-once and aggregates are applied only
// while game_players.applied_at is NULL.
func (s *Store) SaveGameSnapshot(ctx context.Context, snap GameSnapshot) (SnapshotResult, error) {
	res := SnapshotResult{Scores: map[string]int64{}}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	g := snap.Game
	if _, err := tx.Exec(ctx, `INSERT INTO games (id, room_id, game_type, stage, stage_started_at, stage_deadline_at, started_at, finished_at, final_algorithm_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET stage = EXCLUDED.stage, stage_started_at = EXCLUDED.stage_started_at,
			stage_deadline_at = EXCLUDED.stage_deadline_at,
			finished_at = COALESCE(games.finished_at, EXCLUDED.finished_at),
			final_algorithm_id = COALESCE(EXCLUDED.final_algorithm_id, games.final_algorithm_id)`,
		g.ID, g.RoomID, string(g.GameType), string(g.Stage), g.StageStartedAt, timeParam(g.StageDeadlineAt), g.StartedAt,
		timeParam(g.FinishedAt), textParam(g.FinalAlgorithmID)); err != nil {
		return res, err
	}

	for _, p := range snap.Players {
		var result pgtype.Text
		if p.Result != nil {
			result = textParam(string(*p.Result))
		}
		if _, err := tx.Exec(ctx, `INSERT INTO game_players (game_id, user_id, pre_score, pre_coin, pre_exp, joined_at,
				score_delta, coin_delta, exp_delta, result, rank_in_game, solved)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (game_id, user_id) DO UPDATE SET
				score_delta = COALESCE(game_players.score_delta, EXCLUDED.score_delta),
				coin_delta = COALESCE(game_players.coin_delta, EXCLUDED.coin_delta),
				exp_delta = COALESCE(game_players.exp_delta, EXCLUDED.exp_delta),
				result = COALESCE(game_players.result, EXCLUDED.result),
				rank_in_game = COALESCE(game_players.rank_in_game, EXCLUDED.rank_in_game),
				solved = COALESCE(game_players.solved, EXCLUDED.solved)`,
			p.GameID, p.UserID, p.PreScore, p.PreCoin, p.PreExp, p.JoinedAt,
			int8PtrParam(p.ScoreDelta), int8PtrParam(p.CoinDelta), float8PtrParam(p.ExpDelta), result,
			int4PtrParam(p.RankInGame), boolPtrParam(p.Solved)); err != nil {
			return res, err
		}
	}

	for _, b := range snap.Bans {
		if _, err := tx.Exec(ctx, `INSERT INTO game_bans (id, game_id, user_id, algorithm_id, created_at) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`, b.ID, b.GameID, b.UserID, b.AlgorithmID, b.CreatedAt); err != nil {
			return res, err
		}
	}
	for _, p := range snap.Picks {
		if _, err := tx.Exec(ctx, `INSERT INTO game_picks (id, game_id, user_id, algorithm_id, created_at) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`, p.ID, p.GameID, p.UserID, p.AlgorithmID, p.CreatedAt); err != nil {
			return res, err
		}
	}

	userIDs := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		userIDs = append(userIDs, p.UserID)
	}
	if g.Stage == domain.StageFinished {
		for _, p := range snap.Players {
			applied, err := applyAggregate(ctx, tx, g.ID, p.UserID)
			if err != nil {
				return res, err
			}
			if applied {
				res.Applied++
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET active_game_id = NULL, updated_at = now()
			WHERE id = ANY($1) AND active_game_id = $2`, userIDs, g.ID); err != nil {
			return res, err
		}
	}

	rows, err := tx.Query(ctx, `SELECT id, score FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return res, err
	}
	for rows.Next() {
		var (
			id    string
			score int64
		)
		if err := rows.Scan(&id, &score); err != nil {
			rows.Close()
			return res, err
		}
		res.Scores[id] = score
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SnapshotResult{Scores: map[string]int64{}}, err
	}
	return res, nil
}

// applyAggregate claims the settled row via applied_at and folds its deltas
// into the user's aggregate. It is a no-op for unsettled or applied rows.
func applyAggregate(ctx context.Context, tx pgx.Tx, gameID, userID string) (bool, error) {
	var (
		score, coin int64
		exp         float64
		preScore    int64
		preCoin     int64
		preExp      float64
	)
	err := tx.QueryRow(ctx, `UPDATE game_players SET applied_at = now()
		WHERE game_id = $1 AND user_id = $2 AND applied_at IS NULL AND result IS NOT NULL
		RETURNING score_delta, coin_delta, exp_delta, pre_score, pre_coin, pre_exp`, gameID, userID).
		Scan(&score, &coin, &exp, &preScore, &preCoin, &preExp)
	if err != nil {
		if mapNotFound(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO users (id, score, coin, exp) VALUES ($1, $5::bigint + $2::bigint, $6::bigint + $3::bigint, $7::float8 + $4::float8)
		ON CONFLICT (id) DO UPDATE SET score = users.score + $2, coin = users.coin + $3, exp = users.exp + $4, updated_at = now()`,
		userID, score, coin, exp, preScore, preCoin, preExp)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	var (
		g              domain.Game
		gt, stage      string
		deadline, done pgtype.Timestamptz
		final          pgtype.Text
	)
	err := s.Pool.QueryRow(ctx, `SELECT id, room_id, game_type, stage, stage_started_at, stage_deadline_at, started_at, finished_at, final_algorithm_id
		FROM games WHERE id = $1`, gameID).
		Scan(&g.ID, &g.RoomID, &gt, &stage, &g.StageStartedAt, &deadline, &g.StartedAt, &done, &final)
	if err != nil {
		return domain.Game{}, mapNotFound(err)
	}
	g.GameType = domain.GameType(gt)
	g.Stage = domain.Stage(stage)
	g.StageDeadlineAt = timePtrVal(deadline)
	g.FinishedAt = timePtrVal(done)
	g.FinalAlgorithmID = textVal(final)
	return g, nil
}

func (s *Store) ListGamePlayers(ctx context.Context, gameID string) ([]domain.GamePlayer, error) {
	rows, err := s.Pool.Query(ctx, `SELECT game_id, user_id, pre_score, pre_coin, pre_exp, joined_at,
		score_delta, coin_delta, exp_delta, result, rank_in_game, solved
		FROM game_players WHERE game_id = $1 ORDER BY user_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.GamePlayer{}
	for rows.Next() {
		var (
			p           domain.GamePlayer
			score, coin pgtype.Int8
			exp         pgtype.Float8
			result      pgtype.Text
			rank        pgtype.Int4
			solved      pgtype.Bool
		)
		if err := rows.Scan(&p.GameID, &p.UserID, &p.PreScore, &p.PreCoin, &p.PreExp, &p.JoinedAt,
			&score, &coin, &exp, &result, &rank, &solved); err != nil {
			return nil, err
		}
		p.ScoreDelta = int64PtrVal(score)
		p.CoinDelta = int64PtrVal(coin)
		p.ExpDelta = float64PtrVal(exp)
		if result.Valid {
			r := domain.Result(result.String)
			p.Result = &r
		}
		p.RankInGame = intPtrVal(rank)
		p.Solved = boolPtrVal(solved)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountBansPicks reports the durable ban and pick rows of a game.
func (s *Store) CountBansPicks(ctx context.Context, gameID string) (int, int, error) {
	var bans, picks int
	err := s.Pool.QueryRow(ctx, `SELECT (SELECT count(*) FROM game_bans WHERE game_id = $1), (SELECT count(*) FROM game_picks WHERE game_id = $1)`, gameID).
		Scan(&bans, &picks)
	return bans, picks, err
}
