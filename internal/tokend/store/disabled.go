package store

import (
	"context"

	"github.com/signalhaus/tokend/internal/tokend/domain"
)

// Disabled is the null store wired when refresh tokens are turned off.
// It reports no capability, fails every mutation with ErrNotConfigured
// and lists nothing.
type Disabled struct{}

var _ RefreshStore = Disabled{}

func (Disabled) Save(context.Context, domain.User, string) error {
	return ErrNotConfigured
}

func (Disabled) Use(context.Context, string) (*domain.User, error) {
	return nil, ErrNotConfigured
}

func (Disabled) List(context.Context, domain.User) ([]domain.RefreshToken, error) {
	return nil, nil
}

func (Disabled) ListAll(context.Context) (map[int64][]domain.RefreshToken, error) {
	return map[int64][]domain.RefreshToken{}, nil
}

func (Disabled) Revoke(context.Context, string) (bool, error) {
	return false, ErrNotConfigured
}

func (Disabled) RevokeAllFor(context.Context, domain.User) (int, error) {
	return 0, ErrNotConfigured
}

func (Disabled) RevokeAll(context.Context) (int, error) {
	return 0, ErrNotConfigured
}

func (Disabled) SupportsRefresh() bool { return false }

func (Disabled) Ping(context.Context) error { return nil }

func (Disabled) Close() error { return nil }
