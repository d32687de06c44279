package economy

import (
	"context"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ledger"
	"algo-arena/internal/metrics"
	"algo-arena/internal/notify"
	"algo-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// UseResult reports what an item use did to its target.
type UseResult struct {
	Usage    domain.Usage         `json:"usage"`
	Blocked  bool                 `json:"blocked"`
	ShieldID string               `json:"shield_id,omitempty"`
	Effect   *domain.ActiveEffect `json:"effect,omitempty"`
}

// UseItem spends one item against target. A target holding an unused
// shield charge loses that charge instead of receiving the effect.
func (e *Engine) UseItem(ctx context.Context, gameID, userID, targetUserID, itemID string) (UseResult, error) {
	res, err := e.useItem(ctx, gameID, userID, targetUserID, itemID)
	record("use_item", err)
	return res, err
}

func (e *Engine) useItem(ctx context.Context, gameID, userID, targetUserID, itemID string) (UseResult, error) {
	item, ok := e.catalog.Item(itemID)
	if !ok {
		return UseResult{}, domain.ErrItemNotFound
	}
	if targetUserID == "" || targetUserID == userID {
		return UseResult{}, domain.ErrInvalidTarget
	}
	if _, err := e.requireStage(ctx, gameID, userID, domain.StagePlay); err != nil {
		return UseResult{}, err
	}
	if _, ok, err := e.games.Player(ctx, gameID, targetUserID); err != nil {
		return UseResult{}, err
	} else if !ok {
		return UseResult{}, domain.ErrInvalidTarget
	}

	now := e.Clock()
	var (
		res                UseResult
		userInv, targetInv Inventory
	)
	err := e.ledger.WithPlayers(ctx, gameID, []string{userID, targetUserID}, func(tx ledger.Tx) error {
		s, err := summarize(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		ref := ledger.Ref{Kind: domain.AssetItem, ID: item.ID}
		if s.Remaining(ref) <= 0 {
			return domain.ErrNotOwned
		}
		res.Usage = domain.Usage{ID: store.NewID(), GameID: gameID, FromUserID: userID, ToUserID: targetUserID, Kind: domain.AssetItem, RefID: item.ID, CreatedAt: now}
		if err := tx.AppendUsage(ctx, res.Usage); err != nil {
			return err
		}
		s.Used[ref]++
		userInv = e.inventory(gameID, userID, s)

		ts, err := summarize(ctx, tx, gameID, targetUserID)
		if err != nil {
			return err
		}
		if shield, ok := e.shieldCharge(ts); ok {
			charge := domain.Usage{ID: store.NewID(), GameID: gameID, FromUserID: targetUserID, ToUserID: targetUserID, Kind: domain.AssetSpell, RefID: shield, CreatedAt: now}
			if err := tx.AppendUsage(ctx, charge); err != nil {
				return err
			}
			ts.Used[ledger.Ref{Kind: domain.AssetSpell, ID: shield}]++
			targetInv = e.inventory(gameID, targetUserID, ts)
			res.Blocked = true
			res.ShieldID = shield
			return nil
		}
		effect := domain.ActiveEffect{
			ID:           store.NewID(),
			GameID:       gameID,
			TargetUserID: targetUserID,
			SourceUserID: userID,
			SourceID:     item.ID,
			Kind:         domain.AssetItem,
			StartedAt:    now,
			ExpiresAt:    now.Add(time.Duration(item.DurationMS) * time.Millisecond),
		}
		// Written last so a failed write rolls the usage back.
		if err := e.effects.Put(ctx, effect); err != nil {
			return err
		}
		res.Effect = &effect
		return nil
	})
	if err != nil {
		if res.Effect != nil {
			e.discard(ctx, *res.Effect)
		}
		return UseResult{}, err
	}

	logger := log.Info().Str("game_id", gameID).Str("user_id", userID).Str("target_user_id", targetUserID).Str("item_id", item.ID)
	if res.Blocked {
		logger.Str("shield_id", res.ShieldID).Msg("item blocked by shield")
		notify.Send(ctx, e.notifier, e.gameEvent(domain.EventItemEffectBlocked, gameID, userID, now, res))
		e.syncInventory(ctx, targetInv, now)
	} else {
		logger.Str("effect_id", res.Effect.ID).Msg("item effect applied")
		notify.Send(ctx, e.notifier, e.gameEvent(domain.EventItemEffectApplied, gameID, userID, now, res.Effect))
	}
	e.syncInventory(ctx, userInv, now)
	return res, nil
}

// shieldCharge finds a shield spell with a remaining charge, lowest id first.
func (e *Engine) shieldCharge(s ledger.Summary) (string, bool) {
	for _, h := range s.Holdings() {
		if h.Kind != domain.AssetSpell {
			continue
		}
		if sp, ok := e.catalog.Spell(h.RefID); ok && sp.Effect == store.SpellShield {
			return h.RefID, true
		}
	}
	return "", false
}

// UseSpell casts an active spell on the caster. Cleanse first strips every
// effect targeting the caster. Shield only works passively.
func (e *Engine) UseSpell(ctx context.Context, gameID, userID, spellID string) (domain.ActiveEffect, error) {
	effect, err := e.useSpell(ctx, gameID, userID, spellID)
	record("use_spell", err)
	return effect, err
}

func (e *Engine) useSpell(ctx context.Context, gameID, userID, spellID string) (domain.ActiveEffect, error) {
	spell, ok := e.catalog.Spell(spellID)
	if !ok {
		return domain.ActiveEffect{}, domain.ErrSpellNotFound
	}
	if spell.Effect == store.SpellShield {
		return domain.ActiveEffect{}, domain.ErrPassiveSpell
	}
	if _, err := e.requireStage(ctx, gameID, userID, domain.StagePlay); err != nil {
		return domain.ActiveEffect{}, err
	}

	now := e.Clock()
	var (
		effect  domain.ActiveEffect
		inv     Inventory
		written bool
	)
	err := e.ledger.WithPlayers(ctx, gameID, []string{userID}, func(tx ledger.Tx) error {
		s, err := summarize(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		ref := ledger.Ref{Kind: domain.AssetSpell, ID: spell.ID}
		if s.Remaining(ref) <= 0 {
			return domain.ErrNotOwned
		}
		if err := tx.AppendUsage(ctx, domain.Usage{ID: store.NewID(), GameID: gameID, FromUserID: userID, ToUserID: userID, Kind: domain.AssetSpell, RefID: spell.ID, CreatedAt: now}); err != nil {
			return err
		}
		s.Used[ref]++
		inv = e.inventory(gameID, userID, s)
		effect = domain.ActiveEffect{
			ID:           store.NewID(),
			GameID:       gameID,
			TargetUserID: userID,
			SourceUserID: userID,
			SourceID:     spell.ID,
			Kind:         domain.AssetSpell,
			StartedAt:    now,
			ExpiresAt:    now.Add(time.Duration(spell.DurationMS) * time.Millisecond),
		}
		if err := e.effects.Put(ctx, effect); err != nil {
			return err
		}
		written = true
		return nil
	})
	if err != nil {
		if written {
			e.discard(ctx, effect)
		}
		return domain.ActiveEffect{}, err
	}

	if spell.Effect == store.SpellCleanse {
		if err := e.cleanse(ctx, gameID, userID, effect.ID, now); err != nil {
			log.Error().Err(err).Str("game_id", gameID).Str("user_id", userID).Msg("cleanse failed")
		}
	}
	log.Info().Str("game_id", gameID).Str("user_id", userID).Str("spell_id", spell.ID).Str("effect_id", effect.ID).Msg("spell effect applied")
	notify.Send(ctx, e.notifier, e.gameEvent(domain.EventSpellEffectApplied, gameID, userID, now, effect))
	e.syncInventory(ctx, inv, now)
	return effect, nil
}

// cleanse removes the effects targeting userID other than keep. Claim keeps
// a concurrent expiry sweep from reporting the same removal.
func (e *Engine) cleanse(ctx context.Context, gameID, userID, keep string, now time.Time) error {
	targeting, err := e.effects.Targeting(ctx, gameID, userID)
	if err != nil {
		return err
	}
	for _, eff := range targeting {
		if eff.ID == keep {
			continue
		}
		claimed, ok, err := e.effects.Claim(ctx, gameID, eff.ID)
		if err != nil {
			return err
		}
		if ok {
			e.removed(ctx, claimed, domain.RemovalCleansed, now)
		}
	}
	return nil
}

// Dispel lets the target of an effect remove it early.
func (e *Engine) Dispel(ctx context.Context, gameID, userID, effectID string) error {
	if _, err := e.member(ctx, gameID, userID); err != nil {
		return err
	}
	eff, ok, err := e.effects.Get(ctx, gameID, effectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrEffectNotFound
	}
	if eff.TargetUserID != userID {
		return domain.ErrForbidden
	}
	claimed, ok, err := e.effects.Claim(ctx, gameID, effectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrEffectNotFound
	}
	e.removed(ctx, claimed, domain.RemovalDispelled, e.Clock())
	return nil
}

// discard drops an effect whose usage did not commit.
func (e *Engine) discard(ctx context.Context, eff domain.ActiveEffect) {
	if err := e.effects.Discard(ctx, eff.GameID, eff.ID); err != nil {
		log.Error().Err(err).Str("game_id", eff.GameID).Str("effect_id", eff.ID).Msg("discard uncommitted effect failed")
	}
}

func (e *Engine) removed(ctx context.Context, eff domain.ActiveEffect, reason string, now time.Time) {
	metrics.EffectsRemoved.WithLabelValues(reason).Inc()
	log.Info().Str("game_id", eff.GameID).Str("effect_id", eff.ID).Str("reason", reason).Msg("effect removed")
	notify.Send(ctx, e.notifier, domain.NewEffectRemovedEvent(eff, reason, now))
}

func (e *Engine) gameEvent(t domain.EventType, gameID, userID string, now time.Time, data any) domain.Event {
	ev := domain.NewGameEvent(t, gameID, now, data)
	ev.UserID = userID
	return ev
}
