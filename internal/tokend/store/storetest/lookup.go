// Package storetest holds the conformance suite every RefreshStore
// driver must pass. One suite, five drivers, identical guarantees.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/signalhaus/tokend/internal/tokend/domain"
)

// Lookup is an in-memory UserLookup for driver tests. Entries can be
// mutated mid-test to prove that Use re-loads the principal instead of
// replaying the identity captured at Save time.
type Lookup struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewLookup(users ...domain.User) *Lookup {
	l := &Lookup{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		l.users[u.Username] = u
	}
	return l
}

func (l *Lookup) LoadByUsername(_ context.Context, username string) (domain.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[username]
	if !ok {
		return domain.User{}, fmt.Errorf("storetest: unknown user %q", username)
	}
	return u.Clone(), nil
}

// Put inserts or replaces a user.
func (l *Lookup) Put(u domain.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[u.Username] = u
}
