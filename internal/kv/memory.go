package kv

import (
	"context"
	"sync"
	"time"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

type entry struct {
	val     []byte
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]entry{}, now: time.Now}
}

func (s *MemoryStore) getLocked(key string) ([]byte, bool) {
	e, ok := s.m[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, key)
		return nil, false
	}
	return e.val, true
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.getLocked(key)
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, val, ttl)
	return nil
}

func (s *MemoryStore) setLocked(key string, val []byte, ttl time.Duration) {
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.m[key] = e
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, _ := s.getLocked(key)
	next, err := fn(cur)
	if err != nil {
		return err
	}
	s.setLocked(key, next, 0)
	return nil
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lk := "lock:" + key
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.getLocked(lk); held {
		return func() {}, false, nil
	}
	s.setLocked(lk, []byte("1"), ttl)
	return func() {
		s.mu.Lock()
		delete(s.m, lk)
		s.mu.Unlock()
	}, true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
