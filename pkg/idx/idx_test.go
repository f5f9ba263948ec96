package idx_test

import (
	"testing"
	"time"

	"github.com/signalhaus/tokend/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := idx.New()
	b := idx.New()

	require.False(t, a.IsZero())
	require.NotEqual(t, a, b)
	require.Len(t, a.String(), 26)
}

func TestNewAt_Ordering(t *testing.T) {
	base := time.Now().UTC()
	earlier := idx.NewAt(base)
	later := idx.NewAt(base.Add(time.Second))
	require.Less(t, earlier.String(), later.String())
}

func TestParse(t *testing.T) {
	valid := idx.New()

	id, err := idx.Parse(valid.String())
	require.NoError(t, err)
	require.Equal(t, valid, id)

	for _, bad := range []string{"", "  ", "not-a-ulid", "0000"} {
		_, err := idx.Parse(bad)
		require.ErrorIs(t, err, idx.ErrInvalid)
	}
}

func TestTime(t *testing.T) {
	at := time.Now().UTC().Truncate(time.Millisecond)
	id := idx.NewAt(at)
	require.WithinDuration(t, at, id.Time(), time.Millisecond)

	require.True(t, idx.Zero.Time().IsZero())
}
