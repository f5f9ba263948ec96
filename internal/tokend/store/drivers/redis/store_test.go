package redis_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/signalhaus/tokend/internal/tokend/store"
	redisstore "github.com/signalhaus/tokend/internal/tokend/store/drivers/redis"
	"github.com/signalhaus/tokend/internal/tokend/store/storetest"
)

func TestConformance(t *testing.T) {
	var current *miniredis.Miniredis

	storetest.Run(t, func(t *testing.T, lookup store.UserLookup, ttl time.Duration) store.RefreshStore {
		mr := miniredis.RunT(t)
		current = mr

		s := redisstore.NewWithClient(
			goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
			"tokend", lookup, ttl,
		)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{
		// miniredis keys only expire when its clock moves.
		Advance: func(t *testing.T, d time.Duration) {
			current.FastForward(d)
		},
	})
}
