package domain

import "time"

// BearerType is the only token type this core issues.
const BearerType = "Bearer"

// AccessToken is the short-lived signed credential returned to the HTTP
// layer. It is bearer-only and self-describing; nothing here is stored.
type AccessToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
	Type      string `json:"type"`
}

// NewAccessToken wraps a serialized token with its TTL.
func NewAccessToken(token string, ttl time.Duration) AccessToken {
	return AccessToken{
		Token:     token,
		ExpiresIn: int64(ttl / time.Second),
		Type:      BearerType,
	}
}

// RefreshToken is the opaque random credential handed to a client.
// ExpiresIn is the remaining lifetime computed at read time, not the
// original grant.
type RefreshToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds remaining
}
