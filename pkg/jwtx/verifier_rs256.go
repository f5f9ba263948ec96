package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed using RS256 against a single
// configured public key.
type RS256Verifier struct {
	pub    *rsa.PublicKey
	issuer string
}

// NewVerifierRS256 creates a verifier from PEM bytes holding an RSA
// public or private key. An empty issuer disables issuer enforcement.
func NewVerifierRS256(pemKey []byte, issuer string) (*RS256Verifier, error) {
	pub, err := parseVerifyKey(pemKey)
	if err != nil {
		return nil, err
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: not an RSA key")
	}

	return &RS256Verifier{pub: rsaPub, issuer: issuer}, nil
}

// Verify validates the JWT string and returns its parsed Claims.
// The time window is checked here, strictly, after the signature.
func (v *RS256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateWindow(time.Now()); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
