// Package store defines the refresh-token persistence contract that all
// backend drivers implement. The single hard invariant every driver must
// uphold: for one token value, concurrent Use calls yield success to at
// most one caller.
package store

import (
	"context"

	"github.com/signalhaus/tokend/internal/tokend/domain"
)

// UserLookup re-hydrates a principal from the external user source.
// Every successful Use goes through it so account changes made after a
// token was granted (role edits, api-access flips) are always visible.
// Implementations must be safe for concurrent use.
type UserLookup interface {
	LoadByUsername(ctx context.Context, username string) (domain.User, error)
}

// RefreshStore persists opaque refresh tokens. Implementations differ
// only in their storage substrate and the atomicity primitive used for
// Use; the observable contract is identical across all of them.
//
// A token is Active from Save until it is Used, Revoked, or Expired.
// All three terminal states are externally indistinguishable: the entry
// is durably gone and any later Use returns nothing.
type RefreshStore interface {
	// Save inserts a new live entry for user with the configured TTL
	// starting now. A user may hold any number of live tokens.
	Save(ctx context.Context, user domain.User, token string) error

	// Use atomically consumes the token: on success the entry is
	// durably removed and the owner is returned, freshly loaded through
	// the UserLookup. A miss (unknown, expired, or already consumed)
	// returns (nil, nil) with no side effects.
	Use(ctx context.Context, token string) (*domain.User, error)

	// List returns the user's live entries. ExpiresIn on each element
	// is the remaining lifetime at read time and is always positive.
	List(ctx context.Context, user domain.User) ([]domain.RefreshToken, error)

	// ListAll returns every live entry grouped by owning user id.
	ListAll(ctx context.Context) (map[int64][]domain.RefreshToken, error)

	// Revoke deletes a single entry and reports whether it existed.
	// Calling it again for the same token returns false.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllFor deletes all of a user's entries, returning the count.
	RevokeAllFor(ctx context.Context, user domain.User) (int, error)

	// RevokeAll deletes every entry, returning the count.
	RevokeAll(ctx context.Context) (int, error)

	// SupportsRefresh reports whether this store can persist tokens.
	// When false, every mutating method fails with ErrNotConfigured.
	SupportsRefresh() bool

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying handle.
	Close() error
}
