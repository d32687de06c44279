package banpick

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"algo-arena/internal/catalog"
	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"
)

func newTracker(t *testing.T, stage domain.Stage) (*Tracker, *livestate.Games, *notify.Recorder) {
	t.Helper()
	games := livestate.NewGames(ephemeral.NewMemoryStore(), livestate.DefaultTTLs())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := domain.Game{ID: "g1", RoomID: "r1", GameType: domain.GameTypeRanked, Stage: stage, StageStartedAt: now, StartedAt: now}
	players := []domain.GamePlayer{{GameID: "g1", UserID: "u1"}, {GameID: "g1", UserID: "u2"}}
	if err := games.Create(context.Background(), g, players); err != nil {
		t.Fatalf("create game: %v", err)
	}
	rec := &notify.Recorder{}
	cat := catalog.NewStatic(catalog.DefaultAlgorithms(), nil, nil)
	tr := New(games, cat, rec)
	tr.Clock = func() time.Time { return now }
	return tr, games, rec
}

func TestSubmitBanFirstWins(t *testing.T) {
	tr, games, rec := newTracker(t, domain.StageBan)
	ctx := context.Background()

	if _, err := tr.SubmitBan(ctx, "g1", "u1", "dp"); err != nil {
		t.Fatalf("first ban: %v", err)
	}
	if _, err := tr.SubmitBan(ctx, "g1", "u1", "greedy"); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	ban, ok, _ := games.Ban(ctx, "g1", "u1")
	if !ok || ban.AlgorithmID != "dp" {
		t.Fatalf("stored ban = %+v", ban)
	}
	if evs := rec.OfType(domain.EventBanSubmitted); len(evs) != 1 || evs[0].UserID != "u1" {
		t.Fatalf("events = %+v", evs)
	}
}

func TestConcurrentBansRecordExactlyOne(t *testing.T) {
	tr, games, _ := newTracker(t, domain.StageBan)
	ctx := context.Background()
	algos := []string{"bfs", "dfs", "dp", "greedy", "dijkstra", "union-find"}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, a := range algos {
		wg.Add(1)
		go func(a string) {
			defer wg.Done()
			_, err := tr.SubmitBan(ctx, "g1", "u2", a)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrDuplicateSubmission) {
				t.Errorf("ban %s: %v", a, err)
			}
		}(a)
	}
	wg.Wait()
	bans, _ := games.Bans(ctx, "g1")
	if accepted != 1 || len(bans) != 1 {
		t.Fatalf("accepted=%d stored=%d", accepted, len(bans))
	}
}

func TestSubmitBanPreconditions(t *testing.T) {
	tr, _, _ := newTracker(t, domain.StagePick)
	ctx := context.Background()

	if _, err := tr.SubmitBan(ctx, "g1", "u1", "dp"); !errors.Is(err, domain.ErrInvalidStageForAction) {
		t.Fatalf("expected invalid stage, got %v", err)
	}
	if _, err := tr.SubmitBan(ctx, "missing", "u1", "dp"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := tr.SubmitPick(ctx, "g1", "u1", "quantum"); !errors.Is(err, domain.ErrUnknownAlgorithm) {
		t.Fatalf("expected unknown algorithm, got %v", err)
	}
	if _, err := tr.SubmitPick(ctx, "g1", "stranger", "dp"); !errors.Is(err, domain.ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}
}

func TestSubmitPickRejectsBannedAlgorithm(t *testing.T) {
	tr, games, rec := newTracker(t, domain.StageBan)
	ctx := context.Background()
	if _, err := tr.SubmitBan(ctx, "g1", "u1", "dp"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	_, _, _ = games.Update(ctx, "g1", func(g *domain.Game) error {
		g.Stage = domain.StagePick
		return nil
	})
	if _, err := tr.SubmitPick(ctx, "g1", "u2", "dp"); !errors.Is(err, domain.ErrAlgorithmBanned) {
		t.Fatalf("expected banned, got %v", err)
	}
	if _, err := tr.SubmitPick(ctx, "g1", "u2", "greedy"); err != nil {
		t.Fatalf("pick: %v", err)
	}
	if _, err := tr.SubmitPick(ctx, "g1", "u2", "bfs"); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if len(rec.OfType(domain.EventPickSubmitted)) != 1 {
		t.Fatal("exactly one pick event expected")
	}
}

func TestSubmitOnFinishedGame(t *testing.T) {
	tr, _, _ := newTracker(t, domain.StageFinished)
	if _, err := tr.SubmitBan(context.Background(), "g1", "u1", "dp"); !errors.Is(err, domain.ErrAlreadyFinished) {
		t.Fatalf("expected already finished, got %v", err)
	}
}
