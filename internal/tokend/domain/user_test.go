package domain_test

import (
	"testing"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/stretchr/testify/require"
)

func TestUserEqual(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	base := domain.User{ID: 7, Username: "alice", Authorities: []string{"ROLE_USER"}}

	tests := []struct {
		name  string
		other domain.User
		want  bool
	}{
		{"same identity", domain.User{ID: 7, Username: "alice"}, true},
		{"mutable fields ignored", domain.User{ID: 7, Username: "alice", APIAccessAllowed: true, TOTPSecret: &secret}, true},
		{"different id", domain.User{ID: 8, Username: "alice"}, false},
		{"different username", domain.User{ID: 7, Username: "bob"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, base.Equal(tt.other))
		})
	}
}

func TestUserClone(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	u := domain.User{ID: 1, Username: "alice", Authorities: []string{"ROLE_USER", "ROLE_ADMIN"}, TOTPSecret: &secret}

	c := u.Clone()
	require.True(t, u.Equal(c))

	c.Authorities[0] = "ROLE_OTHER"
	*c.TOTPSecret = "changed"
	require.Equal(t, "ROLE_USER", u.Authorities[0])
	require.Equal(t, "JBSWY3DPEHPK3PXP", *u.TOTPSecret)
}

func TestNewAccessToken(t *testing.T) {
	at := domain.NewAccessToken("abc.def.ghi", 30*time.Minute)
	require.Equal(t, "Bearer", at.Type)
	require.EqualValues(t, 1800, at.ExpiresIn)
	require.Equal(t, "abc.def.ghi", at.Token)
}
