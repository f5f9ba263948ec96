package jwtx_test

import (
	"testing"
	"time"

	"github.com/signalhaus/tokend/pkg/cryptox"
	"github.com/signalhaus/tokend/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// algs under test; RS256 uses the smallest allowed key to keep the
// suite fast.
var algs = []struct {
	name    string
	rsaBits int
}{
	{"RS256", 2048},
	{"ES256", 0},
	{"EdDSA", 0},
}

func newKeyPair(t *testing.T, alg string, rsaBits int) (signer jwtx.Signer, verifier jwtx.Verifier) {
	t.Helper()

	pemKey, err := cryptox.GenerateKeyPEM(alg, rsaBits)
	require.NoError(t, err)

	signer, err = jwtx.NewSigner(alg, "test-key", pemKey)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())

	verifier, err = jwtx.NewVerifier(alg, pemKey, "tokend")
	require.NoError(t, err)
	return signer, verifier
}

func TestSignVerify_RoundTrip(t *testing.T) {
	for _, alg := range algs {
		t.Run(alg.name, func(t *testing.T) {
			signer, verifier := newKeyPair(t, alg.name, alg.rsaBits)

			claims := jwtx.NewAccessClaims(
				"alice", 42, []string{"ROLE_USER"},
				time.Minute, "tokend", time.Now().Add(-time.Second),
			)

			tokenStr, err := signer.Sign(claims)
			require.NoError(t, err)

			got, err := verifier.Verify(tokenStr)
			require.NoError(t, err)
			require.Equal(t, "alice", got.Subject)
			require.EqualValues(t, 42, got.UID)
			require.Equal(t, []string{"ROLE_USER"}, got.Authorities)
			require.Equal(t, claims.ID, got.ID)
		})
	}
}

func TestVerify_WrongKeyRejected(t *testing.T) {
	for _, alg := range algs {
		t.Run(alg.name, func(t *testing.T) {
			signer, _ := newKeyPair(t, alg.name, alg.rsaBits)
			_, otherVerifier := newKeyPair(t, alg.name, alg.rsaBits)

			claims := jwtx.NewAccessClaims(
				"alice", 42, nil,
				time.Minute, "tokend", time.Now().Add(-time.Second),
			)
			tokenStr, err := signer.Sign(claims)
			require.NoError(t, err)

			// Structurally valid claims, different signing key.
			_, err = otherVerifier.Verify(tokenStr)
			require.Error(t, err)
		})
	}
}

func TestVerify_AlgorithmConfusionRejected(t *testing.T) {
	rsaSigner, _ := newKeyPair(t, "RS256", 2048)

	edPEM, err := cryptox.GenerateKeyPEM("EdDSA", 0)
	require.NoError(t, err)
	edVerifier, err := jwtx.NewVerifier("EdDSA", edPEM, "tokend")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims("alice", 1, nil, time.Minute, "tokend", time.Now().Add(-time.Second))
	tokenStr, err := rsaSigner.Sign(claims)
	require.NoError(t, err)

	_, err = edVerifier.Verify(tokenStr)
	require.Error(t, err)
}

func TestVerify_ExpiredRejected(t *testing.T) {
	signer, verifier := newKeyPair(t, "EdDSA", 0)

	claims := jwtx.NewAccessClaims(
		"alice", 1, nil,
		time.Minute, "tokend", time.Now().Add(-2*time.Minute),
	)
	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(tokenStr)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerify_TamperedRejected(t *testing.T) {
	signer, verifier := newKeyPair(t, "EdDSA", 0)

	claims := jwtx.NewAccessClaims("alice", 1, nil, time.Minute, "tokend", time.Now().Add(-time.Second))
	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	tampered := tokenStr[:len(tokenStr)-4] + "AAAA"
	_, err = verifier.Verify(tampered)
	require.Error(t, err)
}

func TestVerify_GarbageRejected(t *testing.T) {
	_, verifier := newKeyPair(t, "EdDSA", 0)

	for _, bad := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		_, err := verifier.Verify(bad)
		require.Error(t, err, "input %q", bad)
	}
}

func TestNewSigner_UnknownAlg(t *testing.T) {
	_, err := jwtx.NewSigner("HS256", "kid", nil)
	require.Error(t, err)
}

func TestVerifierFromPublicPEM(t *testing.T) {
	privPEM, err := cryptox.GenerateKeyPEM("ES256", 0)
	require.NoError(t, err)
	pubPEM, err := cryptox.PublicKeyPEM(privPEM)
	require.NoError(t, err)

	signer, err := jwtx.NewSigner("ES256", "kid", privPEM)
	require.NoError(t, err)
	verifier, err := jwtx.NewVerifier("ES256", pubPEM, "")
	require.NoError(t, err)

	claims := jwtx.NewAccessClaims("bob", 2, nil, time.Minute, "tokend", time.Now().Add(-time.Second))
	tokenStr, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := verifier.Verify(tokenStr)
	require.NoError(t, err)
	require.Equal(t, "bob", got.Subject)
}
