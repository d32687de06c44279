package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
)

// Presence holds typing and heartbeat signals. They have no durable
// counterpart and disappear with their TTL.
type Presence struct {
	es  ephemeral.Store
	ttl TTLs
}

func NewPresence(es ephemeral.Store, ttl TTLs) *Presence {
	return &Presence{es: es, ttl: ttl}
}

func (p *Presence) SetTyping(ctx context.Context, roomID, userID string, now time.Time) error {
	return put(ctx, p.es, ephemeral.TypingKey(roomID, userID), domain.TypingStatus{RoomID: roomID, UserID: userID, UpdatedAt: now}, p.ttl.Typing)
}

func (p *Presence) ClearTyping(ctx context.Context, roomID, userID string) error {
	return p.es.Delete(ctx, ephemeral.TypingKey(roomID, userID))
}

func (p *Presence) Typing(ctx context.Context, roomID string) ([]domain.TypingStatus, error) {
	raw, err := p.es.ScanPrefix(ctx, ephemeral.TypingPrefix(roomID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.TypingStatus, 0, len(raw))
	for key, b := range raw {
		var st domain.TypingStatus
		if err := json.Unmarshal(b, &st); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (p *Presence) Beat(ctx context.Context, userID string, now time.Time) error {
	return put(ctx, p.es, ephemeral.HeartbeatKey(userID), domain.Heartbeat{UserID: userID, SeenAt: now}, p.ttl.Heartbeat)
}

func (p *Presence) LastSeen(ctx context.Context, userID string) (domain.Heartbeat, bool, error) {
	return get[domain.Heartbeat](ctx, p.es, ephemeral.HeartbeatKey(userID))
}

type RankEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

// Ranking is the global score-ordered set.
type Ranking struct {
	es ephemeral.Store
}

func NewRanking(es ephemeral.Store) *Ranking {
	return &Ranking{es: es}
}

func (r *Ranking) Set(ctx context.Context, userID string, score int64) error {
	return r.es.ZAdd(ctx, ephemeral.RankingScoreKey, userID, float64(score))
}

// Top returns the n best users. Equal scores share a rank.
func (r *Ranking) Top(ctx context.Context, n int) ([]RankEntry, error) {
	zs, err := r.es.ZTop(ctx, ephemeral.RankingScoreKey, n)
	if err != nil {
		return nil, err
	}
	out := make([]RankEntry, 0, len(zs))
	for i, z := range zs {
		rank := i + 1
		if i > 0 && z.Score == zs[i-1].Score {
			rank = out[i-1].Rank
		}
		out = append(out, RankEntry{Rank: rank, UserID: z.Member, Score: int64(z.Score)})
	}
	return out, nil
}
