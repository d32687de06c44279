package ephemeral

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory://")
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("memory:// opened %T", s)
	}

	mr := miniredis.RunT(t)
	s, err = Open(ctx, "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("redis url opened %T", s)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, err := Open(ctx, "redis://127.0.0.1:1/0"); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}
