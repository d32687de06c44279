package app

import (
	"context"
	"testing"
	"time"

	"algo-arena/internal/catalog"
	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/notify"
	"algo-arena/internal/rooms"
	"algo-arena/internal/store"
	"algo-arena/internal/testutil"
)

func TestNormalSessionOnPostgres(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := catalog.SeedDefaults(ctx, st); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cat, err := catalog.Load(ctx, st)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	a := New(testEngineConfig(), st, ephemeral.NewMemoryStore(), cat, notify.Discard{})
	now := time.Now().UTC().Truncate(time.Millisecond)
	a.SetClock(func() time.Time { return now })

	room, err := a.Rooms.CreateRoom(ctx, "host", rooms.CreateRoomInput{Name: "warmup", GameType: domain.GameTypeNormal, Language: "go", Capacity: 2})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := a.Rooms.JoinRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := a.Rooms.SetReady(ctx, room.ID, "guest", true); err != nil {
		t.Fatalf("ready: %v", err)
	}
	g, err := a.Lifecycle.StartGame(ctx, room.ID, "host", domain.GameTypeNormal)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if u, _ := st.GetUser(ctx, "guest"); u.ActiveGameID != g.ID {
		t.Fatalf("active game = %q, want %q", u.ActiveGameID, g.ID)
	}

	a.Lifecycle.Tick(ctx)
	now = now.Add(1800 * time.Second)
	a.Lifecycle.Tick(ctx)

	for _, id := range []string{"host", "guest"} {
		u, err := st.GetUser(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if u.Score != domain.DefaultScore || u.Coin != 50 || u.Exp != 20 || u.ActiveGameID != "" {
			t.Fatalf("%s aggregate = %+v", id, u)
		}
	}
	stored, err := st.GetGame(ctx, g.ID)
	if err != nil || stored.Stage != domain.StageFinished || stored.FinalAlgorithmID == "" {
		t.Fatalf("stored game = %+v %v", stored, err)
	}

	for _, id := range []string{"guest", "host"} {
		if err := a.Rooms.LeaveRoom(ctx, room.ID, id); err != nil {
			t.Fatalf("leave %s: %v", id, err)
		}
	}
	if _, status, err := st.GetRoom(ctx, room.ID); err != nil || status != store.RoomStatusClosed {
		t.Fatalf("room status = %q %v", status, err)
	}
}
