package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed access-token payload. The registered claims carry
// subject (username), issuer and the validity window; the custom fields
// carry the numeric user id and the ordered authority list.
type Claims struct {
	jwt.RegisteredClaims

	// UID is the numeric user id, kept separate from the subject so the
	// subject stays a human-readable username.
	UID int64 `json:"uid"`

	// Authorities are role names, order-preserving.
	Authorities []string `json:"authorities,omitempty"`
}

// NewAccessClaims builds the claim set for a freshly issued token.
// iat and nbf are both set to now; exp is now plus the configured TTL;
// jti is a random UUID whose uniqueness is not otherwise enforced.
func NewAccessClaims(
	subject string,
	uid int64,
	authorities []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UID:         uid,
		Authorities: slices.Clone(authorities),
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateWindow enforces the validity window with strict inequalities:
// iat < now, nbf < now, exp > now. A timestamp absent from the token is
// treated as epoch zero, so a missing exp can never validate.
func (c *Claims) ValidateWindow(now time.Time) error {
	if !claimTime(c.IssuedAt).Before(now) {
		return ErrNotYetValid
	}
	if !claimTime(c.NotBefore).Before(now) {
		return ErrNotYetValid
	}
	if !claimTime(c.ExpiresAt).After(now) {
		return ErrExpired
	}
	return nil
}

func claimTime(nd *jwt.NumericDate) time.Time {
	if nd == nil {
		return time.Unix(0, 0)
	}
	return nd.Time
}
