package jwtx

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
// Verification is signature-plus-window only; callers that need reasons
// beyond pass/fail must inspect the returned error themselves.
type Verifier interface {
	Verify(token string) (Claims, error)
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// NewVerifier creates a verifier for the named algorithm from PEM bytes.
// The PEM may hold a public key or a private key (the public half is
// derived). Supported algorithms: RS256, ES256, EdDSA.
func NewVerifier(alg string, pemKey []byte, issuer string) (Verifier, error) {
	switch alg {
	case "RS256":
		return NewVerifierRS256(pemKey, issuer)
	case "ES256":
		return NewVerifierES256(pemKey, issuer)
	case "EdDSA":
		return NewVerifierEdDSA(pemKey, issuer)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
}

// parseVerifyKey extracts a public key from PEM bytes, accepting both
// public and private key encodings so a single key file can back a
// signer and its verifier.
func parseVerifyKey(pemKey []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for verification key")
	}

	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
		}
		return key.Public(), nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse EC key: %w", err)
		}
		return key.Public(), nil
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		signer, ok := priv.(crypto.Signer)
		if !ok {
			return nil, errors.New("jwtx: private key cannot derive public key")
		}
		return signer.Public(), nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}
