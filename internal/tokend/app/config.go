// Package app is the composition root: configuration, key loading and
// backend selection live here so main stays a thin shell.
package app

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/signalhaus/tokend/pkg/timex"
)

// Config is read from the environment (TOKEND_* variables), optionally
// seeded from a YAML file first. Both the signing and refresh features
// are off unless configured; an empty Config is valid and yields a
// service that refuses everything with ErrNotConfigured.
type Config struct {
	Env string `yaml:"env" env:"TOKEND_ENV" env-default:"dev"`

	Log LogConfig `yaml:"log"`

	Issuer    string `yaml:"issuer" env:"TOKEND_ISSUER" env-default:"tokend"`
	Algorithm string `yaml:"algorithm" env:"TOKEND_ALGORITHM" env-default:"EdDSA"`

	// SigningKeyFile holds the PEM private key; signing is disabled
	// when empty. VerifyKeyFile may point at a public key for
	// verification-only deployments and falls back to the signing key.
	SigningKeyFile string `yaml:"signing_key_file" env:"TOKEND_SIGNING_KEY_FILE"`
	VerifyKeyFile  string `yaml:"verify_key_file" env:"TOKEND_VERIFY_KEY_FILE"`
	KeyID          string `yaml:"key_id" env:"TOKEND_KEY_ID" env-default:"default"`

	// TTLs accept "30 minutes", "60 days", Go duration syntax, or a
	// bare number of minutes.
	AccessTTL  string `yaml:"access_ttl" env:"TOKEND_ACCESS_TTL" env-default:"30 minutes"`
	RefreshTTL string `yaml:"refresh_ttl" env:"TOKEND_REFRESH_TTL" env-default:"60 days"`

	RefreshTokenBytes int `yaml:"refresh_token_bytes" env:"TOKEND_REFRESH_TOKEN_BYTES" env-default:"32"`

	// RefreshBackend selects the store: disabled, memory, sqlite,
	// redis, memcache or file.
	RefreshBackend string `yaml:"refresh_backend" env:"TOKEND_REFRESH_BACKEND" env-default:"memory"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Redis    RedisConfig    `yaml:"redis"`
	Memcache MemcacheConfig `yaml:"memcache"`
	File     FileConfig     `yaml:"file"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TOKEND_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"TOKEND_LOG_FORMAT" env-default:"json"`
}

type SQLiteConfig struct {
	DatabaseFile string `yaml:"database_file" env:"TOKEND_DATABASE_FILE" env-default:"tokend.db"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"TOKEND_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"TOKEND_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"TOKEND_REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"TOKEND_REDIS_PREFIX" env-default:"tokend"`
}

type MemcacheConfig struct {
	Addrs  []string `yaml:"addrs" env:"TOKEND_MEMCACHE_ADDRS" env-default:"localhost:11211"`
	Prefix string   `yaml:"prefix" env:"TOKEND_MEMCACHE_PREFIX" env-default:"tokend"`
}

type FileConfig struct {
	DataDir string `yaml:"data_dir" env:"TOKEND_DATA_DIR" env-default:"./data"`
	Lock    bool   `yaml:"lock" env:"TOKEND_FILE_LOCK" env-default:"true"`
}

// Load reads configuration from an optional YAML file with the
// environment overlaid on top, or from the environment alone when no
// file is given.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := timex.Parse(c.AccessTTL); err != nil {
		return fmt.Errorf("access_ttl: %w", err)
	}
	if _, err := timex.Parse(c.RefreshTTL); err != nil {
		return fmt.Errorf("refresh_ttl: %w", err)
	}

	switch c.Algorithm {
	case "RS256", "ES256", "EdDSA":
	default:
		return fmt.Errorf("unsupported algorithm %q", c.Algorithm)
	}

	switch c.RefreshBackend {
	case "disabled", "memory", "sqlite", "redis", "memcache", "file":
	default:
		return fmt.Errorf("unknown refresh backend %q", c.RefreshBackend)
	}
	return nil
}

// AccessTTLSpan returns the parsed access TTL. validate guarantees it
// parses, so failures here are programmer errors.
func (c *Config) AccessTTLSpan() timex.Span { return timex.MustParse(c.AccessTTL) }

// RefreshTTLSpan returns the parsed refresh TTL.
func (c *Config) RefreshTTLSpan() timex.Span { return timex.MustParse(c.RefreshTTL) }
