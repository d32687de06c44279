// Package livestate gives typed access to the session records kept in the
// ephemeral store. Records are JSON; cross references are ids only.
package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"algo-arena/internal/ephemeral"
)

// TTLs configures how long each family of records survives without activity.
type TTLs struct {
	Session   time.Duration
	Typing    time.Duration
	Heartbeat time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Session: 6 * time.Hour, Typing: 5 * time.Second, Heartbeat: 30 * time.Second}
}

func put[T any](ctx context.Context, es ephemeral.Store, key string, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return es.Put(ctx, key, b, ttl)
}

func get[T any](ctx context.Context, es ephemeral.Store, key string) (T, bool, error) {
	var out T
	b, ok, err := es.Get(ctx, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// update decodes the record, lets fn edit it in place and writes it back as
// one atomic merge. Absent keys report false and fn never runs.
func update[T any](ctx context.Context, es ephemeral.Store, key string, fn func(*T) error) (T, bool, error) {
	var out T
	b, ok, err := es.AtomicUpdate(ctx, key, mutator(key, fn))
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, true, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

func hupdate[T any](ctx context.Context, es ephemeral.Store, key, field string, fn func(*T) error) (T, bool, error) {
	var out T
	b, ok, err := es.HUpdate(ctx, key, field, mutator(key, fn))
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, true, fmt.Errorf("decode %s[%s]: %w", key, field, err)
	}
	return out, true, nil
}

func mutator[T any](key string, fn func(*T) error) ephemeral.Mutator {
	return func(cur []byte) ([]byte, error) {
		var v T
		if err := json.Unmarshal(cur, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
}

func hset[T any](ctx context.Context, es ephemeral.Store, key, field string, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s[%s]: %w", key, field, err)
	}
	return es.HSet(ctx, key, field, b, ttl)
}

func hsetnx[T any](ctx context.Context, es ephemeral.Store, key, field string, v T, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode %s[%s]: %w", key, field, err)
	}
	return es.HSetNX(ctx, key, field, b, ttl)
}

func hget[T any](ctx context.Context, es ephemeral.Store, key, field string) (T, bool, error) {
	var out T
	b, ok, err := es.HGet(ctx, key, field)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, true, fmt.Errorf("decode %s[%s]: %w", key, field, err)
	}
	return out, true, nil
}

// hvalues decodes every field of a hash, ordered by field name.
func hvalues[T any](ctx context.Context, es ephemeral.Store, key string) ([]T, error) {
	m, err := es.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]T, 0, len(m))
	for _, f := range fields {
		var v T
		if err := json.Unmarshal(m[f], &v); err != nil {
			return nil, fmt.Errorf("decode %s[%s]: %w", key, f, err)
		}
		out = append(out, v)
	}
	return out, nil
}
