package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/stretchr/testify/require"
)

// Factory builds a fresh, empty store for one test with the given user
// lookup and refresh TTL. The suite owns nothing: the factory should
// register cleanup with t.Cleanup.
type Factory func(t *testing.T, lookup store.UserLookup, ttl time.Duration) store.RefreshStore

// Options tune the suite for backend peculiarities without weakening
// the shared contract.
type Options struct {
	// Advance passes d of backend-visible time. Defaults to
	// time.Sleep; drivers on a simulated clock (miniredis) override it.
	Advance func(t *testing.T, d time.Duration)

	// NonAtomicUse skips the concurrent at-most-once property for the
	// one driver whose consume primitive is documented as a
	// get-then-delete race (memcache).
	NonAtomicUse bool
}

const (
	longTTL  = time.Minute
	shortTTL = 150 * time.Millisecond
)

// Run executes the full conformance suite against the driver.
func Run(t *testing.T, factory Factory, opts Options) {
	advance := opts.Advance
	if advance == nil {
		advance = func(_ *testing.T, d time.Duration) { time.Sleep(d) }
	}

	userA := domain.User{ID: 1, Username: "alice", Authorities: []string{"ROLE_USER"}, APIAccessAllowed: true}
	userB := domain.User{ID: 2, Username: "bob", Authorities: []string{"ROLE_USER"}, APIAccessAllowed: true}

	newLookup := func() *Lookup { return NewLookup(userA, userB) }

	t.Run("supports refresh", func(t *testing.T) {
		s := factory(t, newLookup(), longTTL)
		require.True(t, s.SupportsRefresh())
		require.NoError(t, s.Ping(context.Background()))
	})

	t.Run("login refresh round trip", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		require.NoError(t, s.Save(ctx, userA, "tok1"))

		listed, err := s.List(ctx, userA)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		require.Equal(t, "tok1", listed[0].Token)
		require.Positive(t, listed[0].ExpiresIn)
		require.LessOrEqual(t, listed[0].ExpiresIn, int64(longTTL/time.Second))

		used, err := s.Use(ctx, "tok1")
		require.NoError(t, err)
		require.NotNil(t, used)
		require.True(t, userA.Equal(*used))

		listed, err = s.List(ctx, userA)
		require.NoError(t, err)
		require.Empty(t, listed)

		again, err := s.Use(ctx, "tok1")
		require.NoError(t, err)
		require.Nil(t, again, "second use must find nothing")
	})

	t.Run("use unknown token", func(t *testing.T) {
		s := factory(t, newLookup(), longTTL)
		u, err := s.Use(context.Background(), "never-saved")
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("at most once consumption", func(t *testing.T) {
		if opts.NonAtomicUse {
			t.Skip("driver documents a non-atomic consume")
		}

		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)
		require.NoError(t, s.Save(ctx, userA, "contended"))

		const callers = 16
		var (
			start     sync.WaitGroup
			done      sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  []error
		)

		start.Add(1)
		done.Add(callers)
		for range callers {
			go func() {
				defer done.Done()
				start.Wait()

				u, err := s.Use(ctx, "contended")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, err)
					return
				}
				if u != nil {
					successes++
				}
			}()
		}
		start.Done()
		done.Wait()

		require.Empty(t, failures)
		require.Equal(t, 1, successes, "exactly one caller may win")
	})

	t.Run("expired token is gone", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), shortTTL)

		require.NoError(t, s.Save(ctx, userA, "shortlived"))
		advance(t, shortTTL+100*time.Millisecond)

		u, err := s.Use(ctx, "shortlived")
		require.NoError(t, err)
		require.Nil(t, u)

		listed, err := s.List(ctx, userA)
		require.NoError(t, err)
		require.Empty(t, listed, "list must never include expired entries")

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("idempotent revoke", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		require.NoError(t, s.Save(ctx, userA, "revokable"))

		existed, err := s.Revoke(ctx, "revokable")
		require.NoError(t, err)
		require.True(t, existed)

		existed, err = s.Revoke(ctx, "revokable")
		require.NoError(t, err)
		require.False(t, existed)

		u, err := s.Use(ctx, "revokable")
		require.NoError(t, err)
		require.Nil(t, u)
	})

	t.Run("cross user isolation", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		require.NoError(t, s.Save(ctx, userA, "t1"))
		require.NoError(t, s.Save(ctx, userB, "t2"))

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Len(t, all[userA.ID], 1)
		require.Equal(t, "t1", all[userA.ID][0].Token)
		require.Len(t, all[userB.ID], 1)
		require.Equal(t, "t2", all[userB.ID][0].Token)
	})

	t.Run("many tokens per user", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		for _, tok := range []string{"d1", "d2", "d3"} {
			require.NoError(t, s.Save(ctx, userA, tok))
		}

		listed, err := s.List(ctx, userA)
		require.NoError(t, err)
		require.Len(t, listed, 3)
	})

	t.Run("revoke all for user", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		require.NoError(t, s.Save(ctx, userA, "a1"))
		require.NoError(t, s.Save(ctx, userA, "a2"))
		require.NoError(t, s.Save(ctx, userB, "b1"))

		n, err := s.RevokeAllFor(ctx, userA)
		require.NoError(t, err)
		require.Equal(t, 2, n)

		listed, err := s.List(ctx, userA)
		require.NoError(t, err)
		require.Empty(t, listed)

		listed, err = s.List(ctx, userB)
		require.NoError(t, err)
		require.Len(t, listed, 1)
	})

	t.Run("revoke everything", func(t *testing.T) {
		ctx := context.Background()
		s := factory(t, newLookup(), longTTL)

		require.NoError(t, s.Save(ctx, userA, "a1"))
		require.NoError(t, s.Save(ctx, userA, "a2"))
		require.NoError(t, s.Save(ctx, userB, "b1"))

		n, err := s.RevokeAll(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, n)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Empty(t, all)
	})

	t.Run("use reloads through lookup", func(t *testing.T) {
		ctx := context.Background()
		lookup := newLookup()
		s := factory(t, lookup, longTTL)

		require.NoError(t, s.Save(ctx, userA, "stale-check"))

		// Disable the account after the grant; Use must observe it.
		changed := userA
		changed.APIAccessAllowed = false
		lookup.Put(changed)

		u, err := s.Use(ctx, "stale-check")
		require.NoError(t, err)
		require.NotNil(t, u)
		require.True(t, userA.Equal(*u))
		require.False(t, u.APIAccessAllowed, "must reflect the lookup, not the saved copy")
	})
}
