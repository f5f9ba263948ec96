package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// DefaultRSABits is the RSA key size used when none is configured.
const DefaultRSABits = 4096

// GenerateKeyPEM generates a fresh private key for the given signing
// algorithm and returns it as a PKCS8 PEM block. rsaBits only applies
// to RS256; pass 0 for the default.
func GenerateKeyPEM(alg string, rsaBits int) ([]byte, error) {
	var key crypto.Signer
	var err error

	switch alg {
	case "RS256":
		if rsaBits == 0 {
			rsaBits = DefaultRSABits
		}
		if rsaBits < 2048 {
			return nil, fmt.Errorf("cryptox: RSA key size must be at least 2048 bits")
		}
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
	case "ES256":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "EdDSA":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("cryptox: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate %s key: %w", alg, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PublicKeyPEM derives the PKIX public key PEM from a PKCS8 private key
// PEM, for handing to verification-only deployments.
func PublicKeyPEM(privPEM []byte) ([]byte, error) {
	block, _ := pem.Decode(privPEM)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("cryptox: expected a PKCS8 PRIVATE KEY block")
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}

	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("cryptox: key type cannot derive a public key")
	}

	der, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal public key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
