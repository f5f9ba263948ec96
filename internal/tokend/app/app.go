package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/signalhaus/tokend/internal/tokend/service"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/file"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/memcache"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/memory"
	redisstore "github.com/signalhaus/tokend/internal/tokend/store/drivers/redis"
	"github.com/signalhaus/tokend/internal/tokend/store/drivers/sqlite"
	"github.com/signalhaus/tokend/pkg/jwtx"
	"github.com/signalhaus/tokend/pkg/slogx"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App owns the composed service and the resources behind it.
type App struct {
	Service *service.Service
	Tokens  store.RefreshStore
	Log     *slog.Logger
}

// New wires a service from configuration. The lookup re-hydrates users
// on refresh; pass whatever fronts the deployment's user source.
func New(cfg *Config, lookup store.UserLookup) (*App, error) {
	log := slogx.New(slogx.Config{
		Service: "tokend",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	signer, verifier, err := buildSigning(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := buildStore(cfg, lookup)
	if err != nil {
		return nil, err
	}

	svc := service.New(service.Config{
		Issuer:            cfg.Issuer,
		AccessTTL:         cfg.AccessTTLSpan().Duration(),
		RefreshTokenBytes: cfg.RefreshTokenBytes,
	}, signer, verifier, tokens, log)

	log.Info("tokend ready",
		"algorithm", cfg.Algorithm,
		"signing", signer != nil,
		"verifying", verifier != nil,
		"refresh_backend", cfg.RefreshBackend,
		"access_ttl", cfg.AccessTTL,
		"refresh_ttl", cfg.RefreshTTL,
	)

	return &App{Service: svc, Tokens: tokens, Log: log}, nil
}

// Close releases the refresh backend.
func (a *App) Close() error {
	return a.Tokens.Close()
}

// buildSigning loads key material. No signing key file means both
// halves are off; a verify key file alone yields a verification-only
// deployment.
func buildSigning(cfg *Config) (jwtx.Signer, jwtx.Verifier, error) {
	var signer jwtx.Signer
	var verifier jwtx.Verifier

	if cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read signing key: %w", err)
		}
		signer, err = jwtx.NewSigner(cfg.Algorithm, cfg.KeyID, pemKey)
		if err != nil {
			return nil, nil, fmt.Errorf("build signer: %w", err)
		}
		verifier, err = jwtx.NewVerifier(cfg.Algorithm, pemKey, cfg.Issuer)
		if err != nil {
			return nil, nil, fmt.Errorf("build verifier: %w", err)
		}
	}

	if cfg.VerifyKeyFile != "" {
		pemKey, err := os.ReadFile(cfg.VerifyKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read verify key: %w", err)
		}
		verifier, err = jwtx.NewVerifier(cfg.Algorithm, pemKey, cfg.Issuer)
		if err != nil {
			return nil, nil, fmt.Errorf("build verifier: %w", err)
		}
	}

	return signer, verifier, nil
}

func buildStore(cfg *Config, lookup store.UserLookup) (store.RefreshStore, error) {
	ttl := cfg.RefreshTTLSpan().Duration()

	switch cfg.RefreshBackend {
	case "disabled":
		return store.Disabled{}, nil
	case "memory":
		return memory.New(lookup, ttl), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite.DatabaseFile, lookup, ttl)
	case "redis":
		return redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, lookup, ttl), nil
	case "memcache":
		return memcache.New(cfg.Memcache.Addrs, cfg.Memcache.Prefix, lookup, ttl), nil
	case "file":
		return file.New(cfg.File.DataDir, cfg.File.Lock, lookup, ttl)
	default:
		return nil, fmt.Errorf("unknown refresh backend %q", cfg.RefreshBackend)
	}
}
