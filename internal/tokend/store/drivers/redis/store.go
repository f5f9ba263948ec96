// Package redis backs the refresh store with Redis. Entries are plain
// keys with a server-side TTL, so expiry needs no sweeping here, and
// consumption uses WATCH with a transactional GET+DEL so concurrent
// callers race on the optimistic lock instead of each other.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
)

const backend = "redis"

// useRetries bounds the optimistic-lock retry loop in Use. A losing
// caller sees the key gone on the next attempt and reports a miss.
const useRetries = 4

type entry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type Store struct {
	rdb    *redis.Client
	lookup store.UserLookup
	ttl    time.Duration
	prefix string
}

var _ store.RefreshStore = (*Store)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key, letting one Redis serve several
	// deployments. Defaults to "tokend".
	Prefix string
}

func New(cfg Config, lookup store.UserLookup, ttl time.Duration) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "tokend"
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		lookup: lookup,
		ttl:    ttl,
		prefix: prefix,
	}
}

// NewWithClient wraps an existing client. Tests use it with miniredis.
func NewWithClient(rdb *redis.Client, prefix string, lookup store.UserLookup, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "tokend"
	}
	return &Store{rdb: rdb, lookup: lookup, ttl: ttl, prefix: prefix}
}

func (s *Store) tokenKey(token string) string {
	return s.prefix + ":rt:" + token
}

func (s *Store) userKey(userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(userID, 10)
}

func (s *Store) Save(ctx context.Context, user domain.User, token string) error {
	payload, err := json.Marshal(entry{UserID: user.ID, Username: user.Username})
	if err != nil {
		return store.NewRefreshError(backend, "save", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token), payload, s.ttl)
		pipe.SAdd(ctx, s.userKey(user.ID), token)
		return nil
	})
	return store.NewRefreshError(backend, "save", err)
}

func (s *Store) Use(ctx context.Context, token string) (*domain.User, error) {
	key := s.tokenKey(token)

	for range useRetries {
		var e entry

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, s.userKey(e.UserID), token)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, store.NewRefreshError(backend, "use", err)
		}

		user, err := s.lookup.LoadByUsername(ctx, e.Username)
		if err != nil {
			return nil, store.NewRefreshError(backend, "use", err)
		}
		return &user, nil
	}

	// Out of retries means every attempt lost the race, so the entry
	// was consumed by someone else.
	return nil, nil
}

func (s *Store) List(ctx context.Context, user domain.User) ([]domain.RefreshToken, error) {
	userKey := s.userKey(user.ID)

	tokens, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, store.NewRefreshError(backend, "list", err)
	}

	var out []domain.RefreshToken
	var stale []any
	for _, token := range tokens {
		ttl, err := s.rdb.PTTL(ctx, s.tokenKey(token)).Result()
		if err != nil {
			return nil, store.NewRefreshError(backend, "list", err)
		}
		if ttl <= 0 {
			// Key expired or was consumed; drop the index entry.
			stale = append(stale, token)
			continue
		}
		out = append(out, domain.RefreshToken{
			Token:     token,
			ExpiresIn: ceilSeconds(ttl),
		})
	}

	if len(stale) > 0 {
		if err := s.rdb.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, store.NewRefreshError(backend, "list", err)
		}
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) (map[int64][]domain.RefreshToken, error) {
	out := make(map[int64][]domain.RefreshToken)

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":rt:*", 100).Result()
		if err != nil {
			return nil, store.NewRefreshError(backend, "list-all", err)
		}

		for _, key := range keys {
			data, err := s.rdb.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, store.NewRefreshError(backend, "list-all", err)
			}

			var e entry
			if err := json.Unmarshal(data, &e); err != nil {
				return nil, store.NewRefreshError(backend, "list-all", err)
			}

			ttl, err := s.rdb.PTTL(ctx, key).Result()
			if err != nil {
				return nil, store.NewRefreshError(backend, "list-all", err)
			}
			if ttl <= 0 {
				continue
			}

			out[e.UserID] = append(out[e.UserID], domain.RefreshToken{
				Token:     key[len(s.prefix)+len(":rt:"):],
				ExpiresIn: ceilSeconds(ttl),
			})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	key := s.tokenKey(token)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}

	deleted, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}
	if err := s.rdb.SRem(ctx, s.userKey(e.UserID), token).Err(); err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}
	return deleted > 0, nil
}

func (s *Store) RevokeAllFor(ctx context.Context, user domain.User) (int, error) {
	userKey := s.userKey(user.ID)

	tokens, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all-for", err)
	}

	n := 0
	for _, token := range tokens {
		deleted, err := s.rdb.Del(ctx, s.tokenKey(token)).Result()
		if err != nil {
			return n, store.NewRefreshError(backend, "revoke-all-for", err)
		}
		n += int(deleted)
	}

	if err := s.rdb.Del(ctx, userKey).Err(); err != nil {
		return n, store.NewRefreshError(backend, "revoke-all-for", err)
	}
	return n, nil
}

func (s *Store) RevokeAll(ctx context.Context) (int, error) {
	n := 0

	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":rt:*", 100).Result()
		if err != nil {
			return n, store.NewRefreshError(backend, "revoke-all", err)
		}
		for _, key := range keys {
			deleted, err := s.rdb.Del(ctx, key).Result()
			if err != nil {
				return n, store.NewRefreshError(backend, "revoke-all", err)
			}
			n += int(deleted)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	// Drop the per-user index sets as well.
	cursor = 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+":u:*", 100).Result()
		if err != nil {
			return n, store.NewRefreshError(backend, "revoke-all", err)
		}
		for _, key := range keys {
			if err := s.rdb.Del(ctx, key).Err(); err != nil {
				return n, store.NewRefreshError(backend, "revoke-all", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return n, nil
}

func (s *Store) SupportsRefresh() bool { return true }

func (s *Store) Ping(ctx context.Context) error {
	return store.NewRefreshError(backend, "ping", s.rdb.Ping(ctx).Err())
}

func (s *Store) Close() error { return s.rdb.Close() }

func ceilSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
