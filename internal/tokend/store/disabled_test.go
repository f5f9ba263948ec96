package store_test

import (
	"context"
	"testing"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/stretchr/testify/require"
)

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	s := store.Disabled{}
	user := domain.User{ID: 1, Username: "alice"}

	require.False(t, s.SupportsRefresh())

	require.ErrorIs(t, s.Save(ctx, user, "tok"), store.ErrNotConfigured)

	_, err := s.Use(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = s.Revoke(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = s.RevokeAllFor(ctx, user)
	require.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = s.RevokeAll(ctx)
	require.ErrorIs(t, err, store.ErrNotConfigured)

	// Reads stay quiet: nothing is ever stored, so nothing is listed.
	tokens, err := s.List(ctx, user)
	require.NoError(t, err)
	require.Empty(t, tokens)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
}

func TestRefreshError(t *testing.T) {
	err := store.NewRefreshError("redis", "use", context.DeadlineExceeded)
	require.True(t, store.IsRefreshError(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "redis")
	require.Contains(t, err.Error(), "use")

	require.NoError(t, store.NewRefreshError("redis", "use", nil))
	require.False(t, store.IsRefreshError(context.Canceled))
}
