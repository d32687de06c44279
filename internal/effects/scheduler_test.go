package effects

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"
)

func setup(t *testing.T) (*Scheduler, *livestate.Effects, *notify.Recorder, *time.Time) {
	t.Helper()
	es := ephemeral.NewMemoryStore()
	games := livestate.NewGames(es, livestate.DefaultTTLs())
	effects := livestate.NewEffects(es, 5*time.Second)
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	if err := games.Create(ctx, domain.Game{ID: "g1", RoomID: "r1", GameType: domain.GameTypeRanked, Stage: domain.StagePlay, StartedAt: now}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, d := range []time.Duration{time.Second, 3 * time.Second} {
		e := domain.ActiveEffect{ID: []string{"e1", "e2"}[i], GameID: "g1", TargetUserID: "u2", SourceUserID: "u1", SourceID: "freeze", Kind: domain.AssetItem, StartedAt: now, ExpiresAt: now.Add(d)}
		if err := effects.Put(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	rec := &notify.Recorder{}
	s := NewScheduler(games, effects, rec)
	clock := now
	s.Clock = func() time.Time { return clock }
	return s, effects, rec, &clock
}

func TestTickRemovesOnlyExpired(t *testing.T) {
	s, effects, rec, clock := setup(t)
	ctx := context.Background()

	if n := s.Tick(ctx); n != 0 {
		t.Fatalf("nothing expired yet, removed %d", n)
	}
	*clock = clock.Add(time.Second)
	if n := s.Tick(ctx); n != 1 {
		t.Fatalf("expected e1 removed at its expiry, removed %d", n)
	}
	left, _ := effects.List(ctx, "g1")
	if len(left) != 1 || left[0].ID != "e2" {
		t.Fatalf("left = %+v", left)
	}
	evs := rec.OfType(domain.EventEffectRemoved)
	if len(evs) != 1 || evs[0].Data.(map[string]any)["reason"] != domain.RemovalExpired {
		t.Fatalf("events = %+v", evs)
	}
}

func TestConcurrentSweepsNotifyOnce(t *testing.T) {
	s, _, rec, clock := setup(t)
	*clock = clock.Add(time.Minute)

	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total.Add(int64(s.Tick(context.Background())))
		}()
	}
	wg.Wait()
	if total.Load() != 2 || len(rec.OfType(domain.EventEffectRemoved)) != 2 {
		t.Fatalf("removed=%d events=%d", total.Load(), len(rec.Events()))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 10*time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
