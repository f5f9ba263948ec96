// Package service is the façade callers integrate against: issue and
// validate access tokens, grant and consume refresh tokens, and manage
// the refresh inventory. Both halves are independently optional; a
// missing half degrades to ErrNotConfigured, never to a panic.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/pkg/cryptox"
	"github.com/signalhaus/tokend/pkg/httpx"
	"github.com/signalhaus/tokend/pkg/jwtx"
)

// Config carries the signing parameters. Refresh TTLs live with the
// store that enforces them, not here.
type Config struct {
	Issuer            string
	AccessTTL         time.Duration
	RefreshTokenBytes int
}

// Service holds the signing and refresh machinery. Signer and verifier
// may be nil (signing feature off); the store is never nil, callers
// wire store.Disabled when refresh is off.
type Service struct {
	signer   jwtx.Signer
	verifier jwtx.Verifier
	tokens   store.RefreshStore

	issuer            string
	accessTTL         time.Duration
	refreshTokenBytes int

	log *slog.Logger
}

func New(cfg Config, signer jwtx.Signer, verifier jwtx.Verifier, tokens store.RefreshStore, log *slog.Logger) *Service {
	if tokens == nil {
		tokens = store.Disabled{}
	}
	if log == nil {
		log = slog.Default()
	}
	refreshBytes := cfg.RefreshTokenBytes
	if refreshBytes <= 0 {
		refreshBytes = cryptox.TokenSize256
	}
	return &Service{
		signer:            signer,
		verifier:          verifier,
		tokens:            tokens,
		issuer:            cfg.Issuer,
		accessTTL:         cfg.AccessTTL,
		refreshTokenBytes: refreshBytes,
		log:               log,
	}
}

// GenerateAccessToken signs a fresh access token for the user.
func (s *Service) GenerateAccessToken(user domain.User) (domain.AccessToken, error) {
	if s.signer == nil {
		return domain.AccessToken{}, store.ErrNotConfigured
	}

	claims := jwtx.NewAccessClaims(
		user.Username, user.ID, user.Authorities,
		s.accessTTL, s.issuer, time.Now(),
	)
	signed, err := s.signer.Sign(claims)
	if err != nil {
		return domain.AccessToken{}, err
	}

	s.log.Debug("access token issued", "sub", user.Username, "uid", user.ID)
	return domain.NewAccessToken(signed, s.accessTTL), nil
}

// ValidateToken reports whether the token is currently acceptable:
// parseable, correctly signed, right issuer, inside its window. It is
// deliberately a bare bool; any failure, including a missing verifier,
// is a quiet false.
func (s *Service) ValidateToken(token string) bool {
	if s.verifier == nil {
		return false
	}
	if _, err := s.verifier.Verify(token); err != nil {
		s.log.Debug("token rejected", "err", err)
		return false
	}
	return true
}

// ParseUser verifies the token and materializes its principal. Every
// call returns a fresh instance; callers may mutate the result freely.
func (s *Service) ParseUser(token string) (*domain.User, error) {
	if s.verifier == nil {
		return nil, store.ErrNotConfigured
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:          claims.UID,
		Username:    claims.Subject,
		Authorities: slices.Clone(claims.Authorities),
	}, nil
}

// ExtractBearer pulls the bearer token out of an Authorization header.
// Empty when the header is missing or carries another scheme.
func (s *Service) ExtractBearer(h http.Header) string {
	return httpx.BearerToken(h)
}

// ParseUserFromHeader is ParseUser fed from a request's Authorization
// header, for hosts that sit this service behind an HTTP filter.
func (s *Service) ParseUserFromHeader(h http.Header) (*domain.User, error) {
	token := httpx.BearerToken(h)
	if token == "" {
		return nil, jwtx.ErrMalformed
	}
	return s.ParseUser(token)
}

// GenerateRefreshToken mints an opaque random token and persists it for
// the user under the configured refresh TTL.
func (s *Service) GenerateRefreshToken(ctx context.Context, user domain.User) (string, error) {
	if !s.tokens.SupportsRefresh() {
		return "", store.ErrNotConfigured
	}

	token, err := cryptox.GenerateToken(s.refreshTokenBytes)
	if err != nil {
		return "", err
	}
	if err := s.tokens.Save(ctx, user, token); err != nil {
		return "", err
	}

	s.log.Debug("refresh token granted", "sub", user.Username, "uid", user.ID)
	return token, nil
}

// UseRefreshToken consumes a refresh token. The returned user is
// freshly loaded, so revoked roles or disabled accounts surface here.
// A miss is (nil, nil); only infrastructure failures are errors.
func (s *Service) UseRefreshToken(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.tokens.Use(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.log.Debug("refresh token miss")
		return nil, nil
	}
	return user, nil
}

// IsRefreshTokenSupported reports whether a refresh backend is wired.
func (s *Service) IsRefreshTokenSupported() bool {
	return s.tokens.SupportsRefresh()
}

// ListRefreshTokensFor returns the user's live refresh tokens.
func (s *Service) ListRefreshTokensFor(ctx context.Context, user domain.User) ([]domain.RefreshToken, error) {
	return s.tokens.List(ctx, user)
}

// ListRefreshTokens returns every live refresh token grouped by user id.
func (s *Service) ListRefreshTokens(ctx context.Context) (map[int64][]domain.RefreshToken, error) {
	return s.tokens.ListAll(ctx)
}

// RevokeRefreshToken deletes one token, reporting whether it existed.
func (s *Service) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	return s.tokens.Revoke(ctx, token)
}

// ClearTokensFor revokes all of one user's refresh tokens.
func (s *Service) ClearTokensFor(ctx context.Context, user domain.User) (int, error) {
	n, err := s.tokens.RevokeAllFor(ctx, user)
	if err == nil && n > 0 {
		s.log.Info("refresh tokens cleared", "uid", user.ID, "count", n)
	}
	return n, err
}

// ClearTokens revokes every refresh token in the store.
func (s *Service) ClearTokens(ctx context.Context) (int, error) {
	n, err := s.tokens.RevokeAll(ctx)
	if err == nil {
		s.log.Info("all refresh tokens cleared", "count", n)
	}
	return n, err
}
