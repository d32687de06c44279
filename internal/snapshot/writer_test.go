package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/livestate"
	"algo-arena/internal/store"
)

type fakeDurable struct {
	games   map[string]store.GameSnapshot
	applied map[string]bool
	scores  map[string]int64
	rooms   map[string]bool
	fail    error
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{games: map[string]store.GameSnapshot{}, applied: map[string]bool{}, scores: map[string]int64{"u1": 1000, "u2": 1000}, rooms: map[string]bool{}}
}

func (f *fakeDurable) SaveGameSnapshot(_ context.Context, snap store.GameSnapshot) (store.SnapshotResult, error) {
	if f.fail != nil {
		return store.SnapshotResult{}, f.fail
	}
	f.games[snap.Game.ID] = snap
	res := store.SnapshotResult{Scores: map[string]int64{}}
	for _, p := range snap.Players {
		key := snap.Game.ID + "/" + p.UserID
		if snap.Game.Stage == domain.StageFinished && p.Settled() && !f.applied[key] {
			f.applied[key] = true
			f.scores[p.UserID] += *p.ScoreDelta
			res.Applied++
		}
		res.Scores[p.UserID] = f.scores[p.UserID]
	}
	return res, nil
}

func (f *fakeDurable) SaveRoomSnapshot(_ context.Context, room domain.Room, _ []domain.RoomPlayer, closed bool) error {
	if f.fail != nil {
		return f.fail
	}
	f.rooms[room.ID] = closed
	return nil
}

type fixture struct {
	es      *ephemeral.MemoryStore
	games   *livestate.Games
	effects *livestate.Effects
	rooms   *livestate.Rooms
	ranking *livestate.Ranking
	durable *fakeDurable
	writer  *Writer
}

func newFixture() *fixture {
	es := ephemeral.NewMemoryStore()
	f := &fixture{
		es:      es,
		games:   livestate.NewGames(es, livestate.DefaultTTLs()),
		effects: livestate.NewEffects(es, time.Second),
		rooms:   livestate.NewRooms(es, livestate.DefaultTTLs()),
		ranking: livestate.NewRanking(es),
		durable: newFakeDurable(),
	}
	f.writer = NewWriter(f.games, f.effects, f.rooms, f.ranking, f.durable)
	return f
}

func (f *fixture) finishedGame(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	p1 := domain.GamePlayer{GameID: "g1", UserID: "u1", PreScore: 1000}
	p1.Apply(domain.Settlement{ScoreDelta: 30, CoinDelta: 100, ExpDelta: 50, Result: domain.ResultWin, Rank: 1, Solved: true})
	p2 := domain.GamePlayer{GameID: "g1", UserID: "u2", PreScore: 1000}
	p2.Apply(domain.Settlement{ScoreDelta: 10, CoinDelta: 50, ExpDelta: 30, Result: domain.ResultLose, Rank: 2})
	g := domain.Game{ID: "g1", RoomID: "r1", GameType: domain.GameTypeRanked, Stage: domain.StageFinished, StartedAt: now, FinishedAt: &now}
	if err := f.games.Create(ctx, g, []domain.GamePlayer{p1, p2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = f.rooms.Create(ctx, domain.Room{ID: "r1", Name: "arena", Capacity: 4, HostUserID: "u1", ActiveGameID: "g1"})
	_, _ = f.games.AddBan(ctx, domain.GameBan{ID: "b1", GameID: "g1", UserID: "u1", AlgorithmID: "dp"})
	_ = f.effects.Put(ctx, domain.ActiveEffect{ID: "e1", GameID: "g1", TargetUserID: "u2", StartedAt: now, ExpiresAt: now.Add(time.Hour)})
}

func TestFlushFinishedGameClearsFootprintOnce(t *testing.T) {
	f := newFixture()
	f.finishedGame(t)
	ctx := context.Background()

	if err := f.writer.FlushGame(ctx, "g1"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := f.writer.FlushGame(ctx, "g1"); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if f.durable.scores["u1"] != 1030 || f.durable.scores["u2"] != 1010 {
		t.Fatalf("scores = %v", f.durable.scores)
	}
	if len(f.durable.games["g1"].Bans) != 1 {
		t.Fatalf("bans not persisted: %+v", f.durable.games["g1"])
	}
	for _, key := range append(ephemeral.GameFootprint("g1"), ephemeral.EffectKey("g1", "e1")) {
		if _, ok, _ := f.es.Get(ctx, key); ok {
			t.Fatalf("%s survived the flush", key)
		}
		if m, _ := f.es.HGetAll(ctx, key); len(m) != 0 {
			t.Fatalf("%s survived the flush", key)
		}
	}
	if room, _, _ := f.rooms.Get(ctx, "r1"); room.ActiveGameID != "" {
		t.Fatalf("room still points at the game: %+v", room)
	}
	top, _ := f.ranking.Top(ctx, 10)
	if len(top) != 2 || top[0].UserID != "u1" || top[0].Score != 1030 {
		t.Fatalf("ranking = %+v", top)
	}
}

func TestFailedFlushKeepsEphemeralState(t *testing.T) {
	f := newFixture()
	f.finishedGame(t)
	f.durable.fail = errors.New("db down")
	ctx := context.Background()

	if err := f.writer.FlushGame(ctx, "g1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok, _ := f.games.Get(ctx, "g1"); !ok {
		t.Fatal("game must stay for a retry")
	}
	f.durable.fail = nil
	if err := f.writer.FlushGame(ctx, "g1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.durable.scores["u1"] != 1030 {
		t.Fatalf("retry applied wrong score: %v", f.durable.scores)
	}
}

func TestFlushUnfinishedGameKeepsState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.games.Create(ctx, domain.Game{ID: "g2", RoomID: "r1", GameType: domain.GameTypeNormal, Stage: domain.StagePlay}, []domain.GamePlayer{{GameID: "g2", UserID: "u1"}})
	if err := f.writer.FlushGame(ctx, "g2"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, ok, _ := f.games.Get(ctx, "g2"); !ok {
		t.Fatal("unfinished game was deleted")
	}
	if f.durable.scores["u1"] != 1000 {
		t.Fatal("unfinished game touched aggregates")
	}
}

func TestFlushRoomClosesEmptyRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now()
	_ = f.rooms.Create(ctx, domain.Room{ID: "r1", Name: "lobby", Capacity: 4, HostUserID: "u1"})
	_ = f.rooms.PutMember(ctx, domain.RoomPlayer{ID: "m1", RoomID: "r1", UserID: "u1", JoinedAt: now})

	if err := f.writer.FlushRoom(ctx, "r1"); err != nil {
		t.Fatalf("flush open room: %v", err)
	}
	if closed, ok := f.durable.rooms["r1"]; !ok || closed {
		t.Fatalf("room should be saved open, got %v %v", closed, ok)
	}
	_, _, _ = f.rooms.UpdateMember(ctx, "r1", "u1", func(m *domain.RoomPlayer) error {
		m.LeftAt = &now
		return nil
	})
	if err := f.writer.FlushRoom(ctx, "r1"); err != nil {
		t.Fatalf("flush empty room: %v", err)
	}
	if !f.durable.rooms["r1"] {
		t.Fatal("empty room should be closed")
	}
	if _, ok, _ := f.rooms.Get(ctx, "r1"); ok {
		t.Fatal("empty room still in the ephemeral store")
	}
}
