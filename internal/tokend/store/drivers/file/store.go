// Package file backs the refresh store with a single JSON file. A
// process-wide mutex serializes goroutines and an advisory flock
// serializes processes sharing the data directory; every mutation is a
// locked read-mutate-rewrite through a temp file and rename.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
)

const (
	backend = "file"

	tokensFile = "refresh_tokens.json"
	lockFile   = "refresh_tokens.lock"

	lockTimeout    = 5 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

type record struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
	ExpiresAt int64  `json:"expires_at"`
}

type Store struct {
	path   string
	lock   *flock.Flock // nil when file locking is disabled
	lookup store.UserLookup
	ttl    time.Duration

	mu sync.Mutex
}

var _ store.RefreshStore = (*Store)(nil)

// New opens a file store rooted at dataDir, creating the directory if
// needed. withLock enables the cross-process flock; single-process
// deployments can turn it off.
func New(dataDir string, withLock bool, lookup store.UserLookup, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, store.NewRefreshError(backend, "open", err)
	}

	s := &Store{
		path:   filepath.Join(dataDir, tokensFile),
		lookup: lookup,
		ttl:    ttl,
	}
	if withLock {
		s.lock = flock.New(filepath.Join(dataDir, lockFile))
	}
	return s, nil
}

// withFile runs fn over the decoded records while holding both locks.
// fn returns the records to persist, or nil to leave the file alone.
func (s *Store) withFile(ctx context.Context, op string, fn func(recs []record) ([]record, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		defer cancel()

		ok, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
		if err != nil {
			return store.NewRefreshError(backend, op, fmt.Errorf("acquire file lock: %w", err))
		}
		if !ok {
			return store.NewRefreshError(backend, op, errors.New("file lock held elsewhere"))
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	recs, err := s.read()
	if err != nil {
		return store.NewRefreshError(backend, op, err)
	}

	out, err := fn(recs)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := s.write(out); err != nil {
		return store.NewRefreshError(backend, op, err)
	}
	return nil
}

func (s *Store) read() ([]record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// write lands atomically: temp file in the same directory, then rename.
func (s *Store) write(recs []record) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), tokensFile+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *Store) Save(ctx context.Context, user domain.User, token string) error {
	now := time.Now()
	return s.withFile(ctx, "save", func(recs []record) ([]record, error) {
		recs = pruneDead(recs, now.UnixMilli())
		return append(recs, record{
			Token:     token,
			UserID:    user.ID,
			Username:  user.Username,
			CreatedAt: now.UnixMilli(),
			ExpiresAt: now.Add(s.ttl).UnixMilli(),
		}), nil
	})
}

func (s *Store) Use(ctx context.Context, token string) (*domain.User, error) {
	var (
		found    bool
		username string
	)
	err := s.withFile(ctx, "use", func(recs []record) ([]record, error) {
		now := time.Now().UnixMilli()
		for i, r := range recs {
			if r.Token != token {
				continue
			}
			out := append(recs[:i:i], recs[i+1:]...)
			if r.ExpiresAt > now {
				found = true
				username = r.Username
			}
			return out, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	user, err := s.lookup.LoadByUsername(ctx, username)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	return &user, nil
}

func (s *Store) List(ctx context.Context, user domain.User) ([]domain.RefreshToken, error) {
	var out []domain.RefreshToken
	err := s.withFile(ctx, "list", func(recs []record) ([]record, error) {
		now := time.Now()
		for _, r := range recs {
			if r.UserID != user.ID || r.ExpiresAt <= now.UnixMilli() {
				continue
			}
			out = append(out, domain.RefreshToken{
				Token:     r.Token,
				ExpiresIn: ceilSeconds(r.ExpiresAt - now.UnixMilli()),
			})
		}
		return nil, nil
	})
	return out, err
}

func (s *Store) ListAll(ctx context.Context) (map[int64][]domain.RefreshToken, error) {
	out := make(map[int64][]domain.RefreshToken)
	err := s.withFile(ctx, "list-all", func(recs []record) ([]record, error) {
		now := time.Now().UnixMilli()
		for _, r := range recs {
			if r.ExpiresAt <= now {
				continue
			}
			out[r.UserID] = append(out[r.UserID], domain.RefreshToken{
				Token:     r.Token,
				ExpiresIn: ceilSeconds(r.ExpiresAt - now),
			})
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	var existed bool
	err := s.withFile(ctx, "revoke", func(recs []record) ([]record, error) {
		now := time.Now().UnixMilli()
		for i, r := range recs {
			if r.Token != token {
				continue
			}
			existed = r.ExpiresAt > now
			return append(recs[:i:i], recs[i+1:]...), nil
		}
		return nil, nil
	})
	return existed, err
}

func (s *Store) RevokeAllFor(ctx context.Context, user domain.User) (int, error) {
	n := 0
	err := s.withFile(ctx, "revoke-all-for", func(recs []record) ([]record, error) {
		now := time.Now().UnixMilli()
		kept := recs[:0:0]
		for _, r := range recs {
			if r.UserID != user.ID {
				kept = append(kept, r)
				continue
			}
			if r.ExpiresAt > now {
				n++
			}
		}
		return kept, nil
	})
	return n, err
}

func (s *Store) RevokeAll(ctx context.Context) (int, error) {
	n := 0
	err := s.withFile(ctx, "revoke-all", func(recs []record) ([]record, error) {
		now := time.Now().UnixMilli()
		for _, r := range recs {
			if r.ExpiresAt > now {
				n++
			}
		}
		return []record{}, nil
	})
	return n, err
}

func (s *Store) SupportsRefresh() bool { return true }

// Ping checks the data directory is still writable.
func (s *Store) Ping(ctx context.Context) error {
	return s.withFile(ctx, "ping", func(recs []record) ([]record, error) {
		return nil, nil
	})
}

func (s *Store) Close() error { return nil }

func pruneDead(recs []record, nowMilli int64) []record {
	kept := recs[:0:0]
	for _, r := range recs {
		if r.ExpiresAt > nowMilli {
			kept = append(kept, r)
		}
	}
	return kept
}

func ceilSeconds(ms int64) int64 {
	secs := (ms + 999) / 1000
	if secs < 1 {
		secs = 1
	}
	return secs
}
