package jwtx

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Verifier validates JWTs signed using ES256 against a single
// configured public key.
type ES256Verifier struct {
	pub    *ecdsa.PublicKey
	issuer string
}

// NewVerifierES256 creates a verifier from PEM bytes holding an ECDSA
// public or private key. An empty issuer disables issuer enforcement.
func NewVerifierES256(pemKey []byte, issuer string) (*ES256Verifier, error) {
	pub, err := parseVerifyKey(pemKey)
	if err != nil {
		return nil, err
	}

	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("jwtx: not an ECDSA key")
	}

	return &ES256Verifier{pub: ecPub, issuer: issuer}, nil
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *ES256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
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
