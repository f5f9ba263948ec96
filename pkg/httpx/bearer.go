// Package httpx holds the thin HTTP-facing helpers this library exposes
// to whatever router or filter chain hosts it.
package httpx

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the bearer token from a request's Authorization
// header. A missing header, or one without the literal "Bearer " prefix,
// yields the empty string.
func BearerToken(h http.Header) string {
	authz := h.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, bearerPrefix))
}
