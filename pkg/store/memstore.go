package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests and single-process
// deployments. The conditional operations hold one mutex across their
// check and mutation, which gives them the same indivisibility the etcd
// implementation gets from transactions.
type MemStore struct {
	mu     sync.Mutex
	items  map[string]memItem
	trails map[string][]string
	subs   map[string][]chan string

	now func() time.Time
}

type memItem struct {
	value    string
	expireAt time.Time // zero means no expiry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		items:  make(map[string]memItem),
		trails: make(map[string][]string),
		subs:   make(map[string][]chan string),
		now:    time.Now,
	}
}

// SetClock overrides the time source, for TTL tests.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// live reports whether key exists and has not expired; expired entries are
// reaped on sight.
func (s *MemStore) live(key string) (memItem, bool) {
	item, ok := s.items[key]
	if !ok {
		return memItem{}, false
	}
	if !item.expireAt.IsZero() && !s.now().Before(item.expireAt) {
		delete(s.items, key)
		return memItem{}, false
	}
	return item, true
}

func (s *MemStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = memItem{value: value, expireAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemStore) ExtendIfEquals(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok || item.value != value {
		return false, nil
	}
	s.items[key] = memItem{value: value, expireAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok || item.value != value {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.live(key)
	if !ok {
		return "", false, nil
	}
	return item.value, true, nil
}

func (s *MemStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memItem{value: value}
	return nil
}

func (s *MemStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memItem{value: value, expireAt: s.now().Add(ttl)}
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemStore) Scan(ctx context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for key := range s.items {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if item, ok := s.live(key); ok {
			out[key] = item.value
		}
	}
	return out, nil
}

func (s *MemStore) HSet(ctx context.Context, hash, field, value string) error {
	return s.Set(ctx, hash+"/"+field, value)
}

func (s *MemStore) HGet(ctx context.Context, hash, field string) (string, bool, error) {
	return s.Get(ctx, hash+"/"+field)
}

func (s *MemStore) HGetAll(ctx context.Context, hash string) (map[string]string, error) {
	scanned, err := s.Scan(ctx, hash+"/")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(scanned))
	for key, value := range scanned {
		out[strings.TrimPrefix(key, hash+"/")] = value
	}
	return out, nil
}

func (s *MemStore) HDel(ctx context.Context, hash, field string) error {
	return s.Delete(ctx, hash+"/"+field)
}

func (s *MemStore) AppendEvent(ctx context.Context, trail, value string, maxLen int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.trails[trail], value)
	if maxLen > 0 && len(entries) > maxLen {
		entries = entries[len(entries)-maxLen:]
	}
	s.trails[trail] = entries
	return nil
}

func (s *MemStore) ListEvents(ctx context.Context, trail string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.trails[trail]
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, entries[i])
	}
	return out, nil
}

func (s *MemStore) Publish(ctx context.Context, channel, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs[channel] {
		select {
		case sub <- message:
		default:
			// Subscriber buffer full, skip
		}
	}
	return nil
}

func (s *MemStore) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	s.mu.Lock()
	sub := make(chan string, 16)
	s.subs[channel] = append(s.subs[channel], sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[channel]
		for i, c := range subs {
			if c == sub {
				s.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(sub)
				break
			}
		}
	}()

	return sub, nil
}

func (s *MemStore) Close() error {
	return nil
}

// Keys returns the sorted live key set, for test assertions.
func (s *MemStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.items))
	for key := range s.items {
		if _, ok := s.live(key); ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
