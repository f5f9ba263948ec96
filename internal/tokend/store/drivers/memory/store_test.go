package memory_test

import (
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/memory"
	"github.com/signalhaus/tokend/internal/tokend/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, lookup store.UserLookup, ttl time.Duration) store.RefreshStore {
		s := memory.New(lookup, ttl)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{})
}
