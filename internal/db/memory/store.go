// Package memory is a process-local db.Store used when no Redis address is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/billsearch/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store keeps values in a map. Expired keys are dropped lazily on read.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]entry), now: time.Now}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all keys.
func (s *Store) Close() {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.live(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.value...), nil
}

// GetEx returns a copy of the stored value and moves its expiry to now+ttl.
// ttl <= 0 leaves the expiry unchanged.
func (s *Store) GetEx(_ context.Context, key string, ttl time.Duration) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.live(key)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
		s.data[key] = e
	}
	return append([]byte(nil), e.value...), nil
}

// live returns the entry for key, dropping it when expired. Callers hold mu.
func (s *Store) live(key string) (entry, error) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, db.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return entry{}, db.ErrKeyNotFound
	}
	return e, nil
}

// Set stores a value without expiry.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.put(key, value, time.Time{})
	return nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.put(key, value, exp)
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys, including expired ones not yet collected.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *Store) put(key string, value []byte, exp time.Time) {
	v := append([]byte(nil), value...)
	s.mu.Lock()
	s.data[key] = entry{value: v, expiresAt: exp}
	s.mu.Unlock()
}
