package ephemeral

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrWrongType = errors.New("wrong_type")

type entryKind int

const (
	kindString entryKind = iota
	kindHash
	kindZSet
)

type memEntry struct {
	kind      entryKind
	value     []byte
	hash      map[string][]byte
	zset      map[string]float64
	expiresAt time.Time
}

// MemoryStore is an in-process Store. It serves single-node deployments
// (REDIS_URL=memory://) and tests. Expired entries are reclaimed lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*memEntry{}, now: time.Now}
}

// WithClock replaces the clock used for TTL evaluation.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryStore) live(key string) *memEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &memEntry{kind: kindString, value: clone(value), expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, false, nil
	}
	if e.kind != kindString {
		return nil, false, ErrWrongType
	}
	return clone(e.value), true, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.live(key); e != nil {
		e.expiresAt = m.expiry(ttl)
	}
	return nil
}

func (m *MemoryStore) AtomicUpdate(_ context.Context, key string, mutate Mutator) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return nil, false, nil
	}
	if e.kind != kindString {
		return nil, false, ErrWrongType
	}
	next, err := mutate(clone(e.value))
	if err != nil {
		return nil, true, err
	}
	e.value = clone(next)
	return clone(next), true, nil
}

func (m *MemoryStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for k := range m.entries {
		if m.live(k) == nil {
			continue
		}
		if ok, err := path.Match(pattern, k); err != nil {
			return nil, err
		} else if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ScanPrefix(_ context.Context, prefix string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	for k := range m.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		e := m.live(k)
		if e == nil || e.kind != kindString {
			continue
		}
		out[k] = clone(e.value)
	}
	return out, nil
}

func (m *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		e = &memEntry{kind: kindString, value: []byte("0")}
		m.entries[key] = e
	}
	if e.kind != kindString {
		return 0, ErrWrongType
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, ErrWrongType
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *MemoryStore) hashFor(key string, create bool) (*memEntry, error) {
	e := m.live(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &memEntry{kind: kindHash, hash: map[string][]byte{}}
		m.entries[key] = e
	}
	if e.kind != kindHash {
		return nil, ErrWrongType
	}
	return e, nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.hashFor(key, true)
	if err != nil {
		return err
	}
	e.hash[field] = clone(value)
	if ttl > 0 {
		e.expiresAt = m.expiry(ttl)
	}
	return nil
}

func (m *MemoryStore) HSetNX(_ context.Context, key, field string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.hashFor(key, true)
	if err != nil {
		return false, err
	}
	if ttl > 0 {
		e.expiresAt = m.expiry(ttl)
	}
	if _, exists := e.hash[field]; exists {
		return false, nil
	}
	e.hash[field] = clone(value)
	return true, nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.hashFor(key, false)
	if err != nil || e == nil {
		return nil, false, err
	}
	v, ok := e.hash[field]
	return clone(v), ok, nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]byte{}
	e, err := m.hashFor(key, false)
	if err != nil || e == nil {
		return out, err
	}
	for f, v := range e.hash {
		out[f] = clone(v)
	}
	return out, nil
}

func (m *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.hashFor(key, false)
	if err != nil || e == nil {
		return err
	}
	for _, f := range fields {
		delete(e.hash, f)
	}
	if len(e.hash) == 0 {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryStore) HUpdate(_ context.Context, key, field string, mutate Mutator) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.hashFor(key, false)
	if err != nil || e == nil {
		return nil, false, err
	}
	cur, ok := e.hash[field]
	if !ok {
		return nil, false, nil
	}
	next, err := mutate(clone(cur))
	if err != nil {
		return nil, true, err
	}
	e.hash[field] = clone(next)
	return clone(next), true, nil
}

func (m *MemoryStore) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		e = &memEntry{kind: kindZSet, zset: map[string]float64{}}
		m.entries[key] = e
	}
	if e.kind != kindZSet {
		return ErrWrongType
	}
	e.zset[member] = score
	return nil
}

// ZTop orders by score descending; equal scores fall back to member
// descending, matching ZREVRANGE.
func (m *MemoryStore) ZTop(_ context.Context, key string, n int) ([]ScoredMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.live(key)
	if e == nil {
		return []ScoredMember{}, nil
	}
	if e.kind != kindZSet {
		return nil, ErrWrongType
	}
	out := make([]ScoredMember, 0, len(e.zset))
	for member, score := range e.zset {
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Member > out[j].Member
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
