package httpx_test

import (
	"net/http"
	"testing"

	"github.com/signalhaus/tokend/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name  string
		authz string
		want  string
	}{
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"empty header", "", ""},
		{"no prefix", "abc.def.ghi", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"lowercase scheme not accepted", "bearer abc", ""},
		{"prefix only", "Bearer ", ""},
		{"extra whitespace trimmed", "Bearer   abc  ", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.authz != "" {
				h.Set("Authorization", tt.authz)
			}
			require.Equal(t, tt.want, httpx.BearerToken(h))
		})
	}
}
