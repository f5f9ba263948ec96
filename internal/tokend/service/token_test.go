package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/service"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/memory"
	"github.com/signalhaus/tokend/internal/tokend/store/storetest"
	"github.com/signalhaus/tokend/pkg/cryptox"
	"github.com/signalhaus/tokend/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const issuer = "tokend-test"

var alice = domain.User{
	ID:               42,
	Username:         "alice",
	Authorities:      []string{"ROLE_USER", "ROLE_ADMIN"},
	APIAccessAllowed: true,
}

func newSignerVerifier(t *testing.T) (jwtx.Signer, jwtx.Verifier) {
	t.Helper()

	pemKey, err := cryptox.GenerateKeyPEM("EdDSA", 0)
	require.NoError(t, err)

	signer, err := jwtx.NewSigner("EdDSA", "test-key", pemKey)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifier("EdDSA", pemKey, issuer)
	require.NoError(t, err)
	return signer, verifier
}

func newService(t *testing.T, lookup store.UserLookup) *service.Service {
	t.Helper()

	signer, verifier := newSignerVerifier(t)
	tokens := memory.New(lookup, time.Hour)
	t.Cleanup(func() { _ = tokens.Close() })

	return service.New(service.Config{
		Issuer:    issuer,
		AccessTTL: 30 * time.Minute,
	}, signer, verifier, tokens, nil)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newService(t, storetest.NewLookup(alice))

	access, err := svc.GenerateAccessToken(alice)
	require.NoError(t, err)
	require.NotEmpty(t, access.Token)
	require.Equal(t, domain.BearerType, access.Type)
	require.Equal(t, int64(30*60), access.ExpiresIn)

	require.True(t, svc.ValidateToken(access.Token))

	got, err := svc.ParseUser(access.Token)
	require.NoError(t, err)
	require.True(t, alice.Equal(*got))
	require.Equal(t, alice.Authorities, got.Authorities)

	// Each parse returns its own instance; mutating one must not leak
	// into the next.
	second, err := svc.ParseUser(access.Token)
	require.NoError(t, err)
	require.NotSame(t, got, second)
	got.Authorities[0] = "ROLE_TAMPERED"
	require.Equal(t, "ROLE_USER", second.Authorities[0])
}

func TestParseUserFromHeader(t *testing.T) {
	svc := newService(t, storetest.NewLookup(alice))

	access, err := svc.GenerateAccessToken(alice)
	require.NoError(t, err)

	h := http.Header{}
	h.Set("Authorization", "Bearer "+access.Token)
	got, err := svc.ParseUserFromHeader(h)
	require.NoError(t, err)
	require.True(t, alice.Equal(*got))

	// Missing header and non-bearer schemes are malformed, not parsed.
	_, err = svc.ParseUserFromHeader(http.Header{})
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	h.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = svc.ParseUserFromHeader(h)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestValidateTokenFailsClosed(t *testing.T) {
	svc := newService(t, storetest.NewLookup(alice))

	require.False(t, svc.ValidateToken(""))
	require.False(t, svc.ValidateToken("not-a-jwt"))

	// Token from a different key must be rejected.
	otherSigner, _ := newSignerVerifier(t)
	claims := jwtx.NewAccessClaims(alice.Username, alice.ID, alice.Authorities,
		time.Minute, issuer, time.Now().Add(-time.Second))
	forged, err := otherSigner.Sign(claims)
	require.NoError(t, err)
	require.False(t, svc.ValidateToken(forged))
}

func TestValidateWithoutVerifier(t *testing.T) {
	svc := service.New(service.Config{Issuer: issuer}, nil, nil, store.Disabled{}, nil)

	require.False(t, svc.ValidateToken("anything"))

	_, err := svc.GenerateAccessToken(alice)
	require.ErrorIs(t, err, store.ErrNotConfigured)

	_, err = svc.ParseUser("anything")
	require.ErrorIs(t, err, store.ErrNotConfigured)
}

func TestRefreshFlow(t *testing.T) {
	ctx := context.Background()
	lookup := storetest.NewLookup(alice)
	svc := newService(t, lookup)

	require.True(t, svc.IsRefreshTokenSupported())

	token, err := svc.GenerateRefreshToken(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	listed, err := svc.ListRefreshTokensFor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, token, listed[0].Token)

	// Account state changes between grant and use must be visible.
	changed := alice
	changed.Authorities = []string{"ROLE_USER"}
	lookup.Put(changed)

	used, err := svc.UseRefreshToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, used)
	require.Equal(t, []string{"ROLE_USER"}, used.Authorities)

	// Single use: the second attempt misses quietly.
	again, err := svc.UseRefreshToken(ctx, token)
	require.NoError(t, err)
	require.Nil(t, again)
}

func TestRefreshDisabled(t *testing.T) {
	ctx := context.Background()
	signer, verifier := newSignerVerifier(t)
	svc := service.New(service.Config{
		Issuer:    issuer,
		AccessTTL: time.Minute,
	}, signer, verifier, store.Disabled{}, nil)

	require.False(t, svc.IsRefreshTokenSupported())

	_, err := svc.GenerateRefreshToken(ctx, alice)
	require.ErrorIs(t, err, store.ErrNotConfigured)

	// Signing still works with refresh off.
	access, err := svc.GenerateAccessToken(alice)
	require.NoError(t, err)
	require.True(t, svc.ValidateToken(access.Token))
}

func TestRevocation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, storetest.NewLookup(alice))

	t1, err := svc.GenerateRefreshToken(ctx, alice)
	require.NoError(t, err)
	t2, err := svc.GenerateRefreshToken(ctx, alice)
	require.NoError(t, err)

	existed, err := svc.RevokeRefreshToken(ctx, t1)
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = svc.RevokeRefreshToken(ctx, t1)
	require.NoError(t, err)
	require.False(t, existed)

	n, err := svc.ClearTokensFor(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	used, err := svc.UseRefreshToken(ctx, t2)
	require.NoError(t, err)
	require.Nil(t, used)

	all, err := svc.ListRefreshTokens(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}
