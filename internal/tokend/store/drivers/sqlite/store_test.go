package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/signalhaus/tokend/internal/tokend/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, lookup store.UserLookup, ttl time.Duration) store.RefreshStore {
		dsn := filepath.Join(t.TempDir(), "tokend.db")
		s, err := sqlite.New(dsn, lookup, ttl)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{})
}
