// Package memory backs the refresh store with a mutex-guarded map. It
// is the default backend: zero setup, single-process, gone on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
)

const backend = "memory"

type entry struct {
	userID    int64
	username  string
	expiresAt time.Time
}

// Store holds live entries keyed by token. Atomic consumption falls out
// of the mutex: check-and-delete happens under one critical section.
type Store struct {
	lookup store.UserLookup
	ttl    time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

var _ store.RefreshStore = (*Store)(nil)

func New(lookup store.UserLookup, ttl time.Duration) *Store {
	return &Store{
		lookup:  lookup,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func (s *Store) Save(_ context.Context, user domain.User, token string) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Saves are the only writes that grow the map, so sweep dead
	// entries here instead of running a background janitor.
	for tok, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, tok)
		}
	}

	s.entries[token] = entry{
		userID:    user.ID,
		username:  user.Username,
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *Store) Use(ctx context.Context, token string) (*domain.User, error) {
	s.mu.Lock()
	e, ok := s.entries[token]
	if ok {
		delete(s.entries, token)
	}
	s.mu.Unlock()

	if !ok || !e.expiresAt.After(time.Now()) {
		return nil, nil
	}

	user, err := s.lookup.LoadByUsername(ctx, e.username)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	return &user, nil
}

func (s *Store) List(_ context.Context, user domain.User) ([]domain.RefreshToken, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.RefreshToken
	for tok, e := range s.entries {
		if e.userID != user.ID || !e.expiresAt.After(now) {
			continue
		}
		out = append(out, domain.RefreshToken{
			Token:     tok,
			ExpiresIn: remaining(e.expiresAt, now),
		})
	}
	return out, nil
}

func (s *Store) ListAll(_ context.Context) (map[int64][]domain.RefreshToken, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64][]domain.RefreshToken)
	for tok, e := range s.entries {
		if !e.expiresAt.After(now) {
			continue
		}
		out[e.userID] = append(out[e.userID], domain.RefreshToken{
			Token:     tok,
			ExpiresIn: remaining(e.expiresAt, now),
		})
	}
	return out, nil
}

func (s *Store) Revoke(_ context.Context, token string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	delete(s.entries, token)
	return e.expiresAt.After(now), nil
}

func (s *Store) RevokeAllFor(_ context.Context, user domain.User) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for tok, e := range s.entries {
		if e.userID != user.ID {
			continue
		}
		delete(s.entries, tok)
		if e.expiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (s *Store) RevokeAll(_ context.Context) (int, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		if e.expiresAt.After(now) {
			n++
		}
	}
	s.entries = make(map[string]entry)
	return n, nil
}

func (s *Store) SupportsRefresh() bool { return true }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// remaining rounds the leftover lifetime up to whole seconds so a live
// entry never reports zero.
func remaining(expiresAt, now time.Time) int64 {
	secs := int64((expiresAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
