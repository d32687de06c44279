package livestate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
)

var errAlreadyRemoved = errors.New("effect_already_removed")

// Effects stores ActiveEffect records. Each record lives slightly past its
// nominal expiry (grace) so the expiration sweep can still observe it.
type Effects struct {
	es    ephemeral.Store
	grace time.Duration
}

func NewEffects(es ephemeral.Store, grace time.Duration) *Effects {
	return &Effects{es: es, grace: grace}
}

func (r *Effects) Put(ctx context.Context, e domain.ActiveEffect) error {
	ttl := e.ExpiresAt.Sub(e.StartedAt) + r.grace
	if ttl <= 0 {
		ttl = r.grace
	}
	return put(ctx, r.es, ephemeral.EffectKey(e.GameID, e.ID), e, ttl)
}

func (r *Effects) Get(ctx context.Context, gameID, effectID string) (domain.ActiveEffect, bool, error) {
	e, ok, err := get[domain.ActiveEffect](ctx, r.es, ephemeral.EffectKey(gameID, effectID))
	if err != nil || !ok || e.Removed {
		return domain.ActiveEffect{}, false, err
	}
	return e, true, nil
}

// List returns the game's effects not yet claimed for removal, oldest first.
func (r *Effects) List(ctx context.Context, gameID string) ([]domain.ActiveEffect, error) {
	raw, err := r.es.ScanPrefix(ctx, ephemeral.EffectPrefix(gameID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActiveEffect, 0, len(raw))
	for key, b := range raw {
		var e domain.ActiveEffect
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if !e.Removed {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Effects) Targeting(ctx context.Context, gameID, userID string) ([]domain.ActiveEffect, error) {
	all, err := r.List(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.TargetUserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Claim marks the effect removed and deletes it. Exactly one of several
// concurrent callers gets true; the others see the effect as already gone.
func (r *Effects) Claim(ctx context.Context, gameID, effectID string) (domain.ActiveEffect, bool, error) {
	key := ephemeral.EffectKey(gameID, effectID)
	e, ok, err := update(ctx, r.es, key, func(e *domain.ActiveEffect) error {
		if e.Removed {
			return errAlreadyRemoved
		}
		e.Removed = true
		return nil
	})
	if errors.Is(err, errAlreadyRemoved) {
		return domain.ActiveEffect{}, false, nil
	}
	if err != nil || !ok {
		return domain.ActiveEffect{}, false, err
	}
	if err := r.es.Delete(ctx, key); err != nil {
		return e, true, err
	}
	return e, true, nil
}

// Discard deletes one effect without notification.
func (r *Effects) Discard(ctx context.Context, gameID, effectID string) error {
	return r.es.Delete(ctx, ephemeral.EffectKey(gameID, effectID))
}

// ClearGame deletes every effect key of the game without notification.
func (r *Effects) ClearGame(ctx context.Context, gameID string) error {
	raw, err := r.es.ScanPrefix(ctx, ephemeral.EffectPrefix(gameID))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	return r.es.Delete(ctx, keys...)
}
