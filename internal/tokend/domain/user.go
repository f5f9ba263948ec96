package domain

import "slices"

// User is the authenticated principal carried inside access tokens and
// attached to stored refresh tokens. It is rebuilt on every
// authentication and every token parse, never persisted by this core.
type User struct {
	ID               int64
	Username         string
	Authorities      []string // ordered role names
	APIAccessAllowed bool
	TOTPSecret       *string // opaque second-factor secret (nullable); never verified here
}

// Equal reports identity equality. Only (ID, Username) participate;
// mutable fields like the TOTP secret never do.
func (u User) Equal(other User) bool {
	return u.ID == other.ID && u.Username == other.Username
}

// Clone returns a deep copy so callers can never alias the authority
// slice or secret of another instance.
func (u User) Clone() User {
	c := u
	c.Authorities = slices.Clone(u.Authorities)
	if u.TOTPSecret != nil {
		secret := *u.TOTPSecret
		c.TOTPSecret = &secret
	}
	return c
}
