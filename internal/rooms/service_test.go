package rooms

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"algo-arena/internal/domain"
	"algo-arena/internal/ephemeral"
	"algo-arena/internal/livestate"
	"algo-arena/internal/notify"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// fakeDurable enforces capacity the way the row-locked store does.
type fakeDurable struct {
	mu       sync.Mutex
	capacity map[string]int
	active   map[string]map[string]bool
	users    map[string]bool
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{capacity: map[string]int{}, active: map[string]map[string]bool{}, users: map[string]bool{}}
}

func (f *fakeDurable) EnsureUser(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = true
	return nil
}

func (f *fakeDurable) CreateRoom(_ context.Context, room domain.Room, host domain.RoomPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacity[room.ID] = room.Capacity
	f.active[room.ID] = map[string]bool{host.UserID: true}
	return nil
}

func (f *fakeDurable) JoinRoom(_ context.Context, m domain.RoomPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	members, ok := f.active[m.RoomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if members[m.UserID] {
		return domain.ErrAlreadyJoined
	}
	if len(members) >= f.capacity[m.RoomID] {
		return domain.ErrRoomFull
	}
	members[m.UserID] = true
	return nil
}

func (f *fakeDurable) LeaveRoom(_ context.Context, roomID, userID string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.active[roomID]
	if !members[userID] {
		return 0, domain.ErrNotAMember
	}
	delete(members, userID)
	return len(members), nil
}

type fakeFlusher struct {
	mu      sync.Mutex
	flushed []string
}

func (f *fakeFlusher) FlushRoom(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, roomID)
	return nil
}

type fixture struct {
	svc     *Service
	rooms   *livestate.Rooms
	games   *livestate.Games
	flusher *fakeFlusher
	rec     *notify.Recorder
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	es := ephemeral.NewMemoryStore()
	ttl := livestate.DefaultTTLs()
	f := &fixture{
		rooms:   livestate.NewRooms(es, ttl),
		games:   livestate.NewGames(es, ttl),
		flusher: &fakeFlusher{},
		rec:     &notify.Recorder{},
		now:     time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.rooms, f.games, livestate.NewPresence(es, ttl), newFakeDurable(), f.flusher, f.rec)
	f.svc.Clock = func() time.Time {
		f.now = f.now.Add(time.Millisecond)
		return f.now
	}
	return f
}

func (f *fixture) create(t *testing.T, capacity int) domain.Room {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), "host", CreateRoomInput{Name: "friday", GameType: domain.GameTypeRanked, Language: "go", Capacity: capacity})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func TestCreateRoomValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateRoom(ctx, "host", CreateRoomInput{Name: "x", GameType: "BLITZ", Capacity: 2}); !errors.Is(err, domain.ErrInvalidGameType) {
		t.Fatalf("expected invalid game type, got %v", err)
	}
	if _, err := f.svc.CreateRoom(ctx, "host", CreateRoomInput{Name: "x", GameType: domain.GameTypeNormal, Capacity: 0}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}

	room := f.create(t, 2)
	members, err := f.svc.Members(ctx, room.ID)
	if err != nil || len(members) != 1 || members[0].UserID != "host" {
		t.Fatalf("members = %+v %v", members, err)
	}
	if v, _ := f.rooms.ListVersion(ctx); v != 1 {
		t.Fatalf("list version = %d, want 1", v)
	}
}

func TestJoinRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 2)

	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, room.ID, "late"); !errors.Is(err, domain.ErrRoomFull) {
		t.Fatalf("expected room full, got %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected already joined, got %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, "missing", "guest"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if got := len(f.rec.OfType(domain.EventPlayerJoined)); got != 1 {
		t.Fatalf("player-joined events = %d", got)
	}
}

func TestJoinRejectedDuringGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 4)

	g := domain.Game{ID: "g1", RoomID: room.ID, GameType: domain.GameTypeRanked, Stage: domain.StagePlay, StartedAt: f.now}
	if err := f.games.Create(ctx, g, nil); err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, _, err := f.rooms.Update(ctx, room.ID, func(r *domain.Room) error {
		r.ActiveGameID = g.ID
		return nil
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); !errors.Is(err, domain.ErrGameInProgress) {
		t.Fatalf("expected game in progress, got %v", err)
	}

	// a released game no longer blocks joins
	if err := f.games.Delete(ctx, g.ID); err != nil {
		t.Fatalf("delete game: %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join after game: %v", err)
	}
}

func TestHostLeavingTransfersToEarliestMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 4)
	for _, u := range []string{"first", "second"} {
		if _, err := f.svc.JoinRoom(ctx, room.ID, u); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}

	if err := f.svc.LeaveRoom(ctx, room.ID, "host"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, _, _ := f.rooms.Get(ctx, room.ID)
	if got.HostUserID != "first" {
		t.Fatalf("host = %s, want first", got.HostUserID)
	}
	history, err := f.rooms.HostHistory(ctx, room.ID)
	if err != nil || len(history) != 1 || history[0].FromUserID != "host" || history[0].Reason != HostChangeLeft {
		t.Fatalf("history = %+v %v", history, err)
	}
	if len(f.rec.OfType(domain.EventHostChanged)) != 1 {
		t.Fatalf("expected one host-changed event")
	}
	if err := f.svc.LeaveRoom(ctx, room.ID, "host"); !errors.Is(err, domain.ErrNotAMember) {
		t.Fatalf("expected not a member on second leave, got %v", err)
	}
	if len(f.flusher.flushed) != 0 {
		t.Fatalf("room flushed while members remain")
	}
}

func TestLastLeaveFlushesRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 2)
	if err := f.svc.LeaveRoom(ctx, room.ID, "host"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(f.flusher.flushed) != 1 || f.flusher.flushed[0] != room.ID {
		t.Fatalf("flushed = %v", f.flusher.flushed)
	}
	if len(f.rec.OfType(domain.EventHostChanged)) != 0 {
		t.Fatalf("host changed in an empty room")
	}
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 4)
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := f.svc.Kick(ctx, room.ID, "guest", "host"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	if err := f.svc.Kick(ctx, room.ID, "host", "host"); !errors.Is(err, domain.ErrInvalidTarget) {
		t.Fatalf("expected invalid target, got %v", err)
	}
	if err := f.svc.Kick(ctx, room.ID, "host", "guest"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); !errors.Is(err, domain.ErrKicked) {
		t.Fatalf("expected kicked, got %v", err)
	}
	if len(f.rec.OfType(domain.EventPlayerKicked)) != 1 || len(f.rec.OfType(domain.EventPlayerLeft)) != 0 {
		t.Fatalf("events = %+v", f.rec.Events())
	}
}

func TestReadyTypingAndHeartbeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.create(t, 2)

	m, err := f.svc.SetReady(ctx, room.ID, "host", true)
	if err != nil || m.State != domain.MemberReady {
		t.Fatalf("ready = %+v %v", m, err)
	}
	if _, err := f.svc.SetReady(ctx, room.ID, "stranger", true); !errors.Is(err, domain.ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}

	if err := f.svc.SetTyping(ctx, room.ID, "host"); err != nil {
		t.Fatalf("typing: %v", err)
	}
	typing, err := f.svc.TypingUsers(ctx, room.ID)
	if err != nil || len(typing) != 1 || typing[0] != "host" {
		t.Fatalf("typing = %v %v", typing, err)
	}

	if alive, _ := f.svc.IsAlive(ctx, "host"); alive {
		t.Fatalf("alive before any heartbeat")
	}
	if err := f.svc.Heartbeat(ctx, "host"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if alive, err := f.svc.IsAlive(ctx, "host"); err != nil || !alive {
		t.Fatalf("alive = %v %v", alive, err)
	}

	if err := f.svc.MarkDisconnected(ctx, room.ID, "host"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	got, _, _ := f.rooms.Member(ctx, room.ID, "host")
	if got.DisconnectedAt == nil || !got.Active() {
		t.Fatalf("member = %+v", got)
	}
}

// deleteFails is an ephemeral store whose deletes never succeed.
type deleteFails struct {
	ephemeral.Store
}

func (deleteFails) Delete(context.Context, ...string) error {
	return errors.New("store unavailable")
}

func TestLeaveLogsTypingCleanupFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	f := newFixture(t)
	es := ephemeral.NewMemoryStore()
	f.svc.presence = livestate.NewPresence(deleteFails{Store: es}, livestate.DefaultTTLs())
	ctx := context.Background()
	room := f.create(t, 2)
	if _, err := f.svc.JoinRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.svc.LeaveRoom(ctx, room.ID, "guest"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"message":"clear typing"`)) || !bytes.Contains(buf.Bytes(), []byte(`"level":"warn"`)) {
		t.Fatalf("expected a clear typing warning, got %s", buf.String())
	}
}
