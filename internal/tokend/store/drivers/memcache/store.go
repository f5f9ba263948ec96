// Package memcache backs the refresh store with memcached. The protocol
// has no transactional get-and-delete, so Use is a plain get followed by
// an unconditional delete: under contention two callers can both read
// the value before either delete lands. Deployments that need a strict
// single-use guarantee should pick the redis or sqlite backend instead.
package memcache

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
)

const backend = "memcache"

// Client is the slice of *memcache.Client this driver needs. Tests
// substitute an in-process fake.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
	Ping() error
}

// entry carries its own deadline because memcached cannot report the
// remaining TTL of an item.
type entry struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"` // unix milliseconds
}

type Store struct {
	mc     Client
	lookup store.UserLookup
	ttl    time.Duration
	prefix string
}

var _ store.RefreshStore = (*Store)(nil)

func New(addrs []string, prefix string, lookup store.UserLookup, ttl time.Duration) *Store {
	return NewWithClient(memcache.New(addrs...), prefix, lookup, ttl)
}

func NewWithClient(mc Client, prefix string, lookup store.UserLookup, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "tokend"
	}
	return &Store{mc: mc, lookup: lookup, ttl: ttl, prefix: prefix}
}

func (s *Store) tokenKey(token string) string { return s.prefix + ":rt:" + token }

func (s *Store) userKey(userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(userID, 10)
}

func (s *Store) usersKey() string { return s.prefix + ":users" }

func (s *Store) Save(_ context.Context, user domain.User, token string) error {
	now := time.Now()
	payload, err := json.Marshal(entry{
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
	})
	if err != nil {
		return store.NewRefreshError(backend, "save", err)
	}

	if err := s.mc.Set(&memcache.Item{
		Key:        s.tokenKey(token),
		Value:      payload,
		Expiration: serverTTL(s.ttl),
	}); err != nil {
		return store.NewRefreshError(backend, "save", err)
	}

	if err := s.appendToIndex(s.userKey(user.ID), token); err != nil {
		return store.NewRefreshError(backend, "save", err)
	}
	if err := s.appendToIndex(s.usersKey(), strconv.FormatInt(user.ID, 10)); err != nil {
		return store.NewRefreshError(backend, "save", err)
	}
	return nil
}

func (s *Store) Use(ctx context.Context, token string) (*domain.User, error) {
	e, live, err := s.getEntry(token)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}

	// Delete regardless of liveness so a dead item cannot linger. This
	// get-then-delete pair is the documented race: it is not atomic.
	if delErr := s.mc.Delete(s.tokenKey(token)); delErr != nil && !errors.Is(delErr, memcache.ErrCacheMiss) {
		return nil, store.NewRefreshError(backend, "use", delErr)
	}

	if !live {
		return nil, nil
	}

	s.removeFromIndex(s.userKey(e.UserID), token)

	user, err := s.lookup.LoadByUsername(ctx, e.Username)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	return &user, nil
}

func (s *Store) List(_ context.Context, user domain.User) ([]domain.RefreshToken, error) {
	out, err := s.listUser(user.ID)
	return out, store.NewRefreshError(backend, "list", err)
}

func (s *Store) ListAll(_ context.Context) (map[int64][]domain.RefreshToken, error) {
	ids, err := s.readIndex(s.usersKey())
	if err != nil {
		return nil, store.NewRefreshError(backend, "list-all", err)
	}

	out := make(map[int64][]domain.RefreshToken)
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		tokens, err := s.listUser(id)
		if err != nil {
			return nil, store.NewRefreshError(backend, "list-all", err)
		}
		if len(tokens) > 0 {
			out[id] = tokens
		}
	}
	return out, nil
}

func (s *Store) Revoke(_ context.Context, token string) (bool, error) {
	e, live, err := s.getEntry(token)
	if err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}

	if err := s.mc.Delete(s.tokenKey(token)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return false, store.NewRefreshError(backend, "revoke", err)
	}
	if live {
		s.removeFromIndex(s.userKey(e.UserID), token)
	}
	return live, nil
}

func (s *Store) RevokeAllFor(_ context.Context, user domain.User) (int, error) {
	n, err := s.revokeUser(user.ID)
	return n, store.NewRefreshError(backend, "revoke-all-for", err)
}

func (s *Store) RevokeAll(_ context.Context) (int, error) {
	ids, err := s.readIndex(s.usersKey())
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all", err)
	}

	n := 0
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c, err := s.revokeUser(id)
		if err != nil {
			return n, store.NewRefreshError(backend, "revoke-all", err)
		}
		n += c
	}

	if err := s.mc.Delete(s.usersKey()); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return n, store.NewRefreshError(backend, "revoke-all", err)
	}
	return n, nil
}

func (s *Store) SupportsRefresh() bool { return true }

func (s *Store) Ping(context.Context) error {
	return store.NewRefreshError(backend, "ping", s.mc.Ping())
}

func (s *Store) Close() error { return nil }

// getEntry fetches and decodes a token item. live is false when the
// item is missing or its embedded deadline has passed; memcached's own
// TTL has whole-second granularity so the deadline is authoritative.
func (s *Store) getEntry(token string) (entry, bool, error) {
	item, err := s.mc.Get(s.tokenKey(token))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return entry{}, false, nil
	}
	if err != nil {
		return entry{}, false, err
	}

	var e entry
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return entry{}, false, err
	}
	return e, e.ExpiresAt > time.Now().UnixMilli(), nil
}

func (s *Store) listUser(userID int64) ([]domain.RefreshToken, error) {
	tokens, err := s.readIndex(s.userKey(userID))
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	var out []domain.RefreshToken
	var kept []string
	for _, token := range tokens {
		e, live, err := s.getEntry(token)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		kept = append(kept, token)
		out = append(out, domain.RefreshToken{
			Token:     token,
			ExpiresIn: ceilSeconds(e.ExpiresAt - now),
		})
	}

	if len(kept) != len(tokens) {
		if err := s.writeIndex(s.userKey(userID), kept); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) revokeUser(userID int64) (int, error) {
	tokens, err := s.readIndex(s.userKey(userID))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, token := range tokens {
		_, live, err := s.getEntry(token)
		if err != nil {
			return n, err
		}
		if err := s.mc.Delete(s.tokenKey(token)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return n, err
		}
		if live {
			n++
		}
	}

	if err := s.mc.Delete(s.userKey(userID)); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return n, err
	}
	return n, nil
}

func (s *Store) readIndex(key string) ([]string, error) {
	item, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var values []string
	if err := json.Unmarshal(item.Value, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) writeIndex(key string, values []string) error {
	if len(values) == 0 {
		if err := s.mc.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return err
		}
		return nil
	}

	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	// Index items never expire server-side; stale members are pruned on
	// read against each entry's own deadline.
	return s.mc.Set(&memcache.Item{Key: key, Value: payload})
}

func (s *Store) appendToIndex(key, value string) error {
	values, err := s.readIndex(key)
	if err != nil {
		return err
	}
	if slices.Contains(values, value) {
		return nil
	}
	return s.writeIndex(key, append(values, value))
}

// removeFromIndex is best effort: a leftover member is pruned on the
// next read anyway.
func (s *Store) removeFromIndex(key, value string) {
	values, err := s.readIndex(key)
	if err != nil {
		return
	}
	i := slices.Index(values, value)
	if i < 0 {
		return
	}
	_ = s.writeIndex(key, slices.Delete(values, i, i+1))
}

// serverTTL converts the configured TTL to memcached's whole-second
// relative expiry, rounding up so short TTLs are never "never expire".
func serverTTL(ttl time.Duration) int32 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return int32(secs)
}

func ceilSeconds(ms int64) int64 {
	secs := (ms + 999) / 1000
	if secs < 1 {
		secs = 1
	}
	return secs
}
