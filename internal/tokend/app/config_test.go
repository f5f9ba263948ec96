package app_test

import (
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/app"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := app.Load("")
	require.NoError(t, err)

	require.Equal(t, "EdDSA", cfg.Algorithm)
	require.Equal(t, "memory", cfg.RefreshBackend)
	require.Equal(t, 30*time.Minute, cfg.AccessTTLSpan().Duration())
	require.Equal(t, 60*24*time.Hour, cfg.RefreshTTLSpan().Duration())
	require.Equal(t, 32, cfg.RefreshTokenBytes)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOKEND_ISSUER", "issuer-x")
	t.Setenv("TOKEND_ALGORITHM", "ES256")
	t.Setenv("TOKEND_ACCESS_TTL", "15 minutes")
	t.Setenv("TOKEND_REFRESH_TTL", "7 days")
	t.Setenv("TOKEND_REFRESH_BACKEND", "sqlite")
	t.Setenv("TOKEND_DATABASE_FILE", "/tmp/tokens.db")

	cfg, err := app.Load("")
	require.NoError(t, err)

	require.Equal(t, "issuer-x", cfg.Issuer)
	require.Equal(t, "ES256", cfg.Algorithm)
	require.Equal(t, 15*time.Minute, cfg.AccessTTLSpan().Duration())
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTLSpan().Duration())
	require.Equal(t, "sqlite", cfg.RefreshBackend)
	require.Equal(t, "/tmp/tokens.db", cfg.SQLite.DatabaseFile)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad ttl", "TOKEND_ACCESS_TTL", "soon"},
		{"bad algorithm", "TOKEND_ALGORITHM", "HS256"},
		{"bad backend", "TOKEND_REFRESH_BACKEND", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := app.Load("")
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := app.Load("/does/not/exist.yaml")
	require.Error(t, err)
}
