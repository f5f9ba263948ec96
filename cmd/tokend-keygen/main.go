// tokend-keygen generates signing key material for tokend.
//
//	tokend-keygen -alg EdDSA -out signing.pem
//
// The private key is written PKCS8-PEM with a matching .pub PEM for
// verification-only deployments.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/signalhaus/tokend/pkg/cryptox"
)

func main() {
	alg := flag.String("alg", "EdDSA", "signing algorithm: RS256, ES256 or EdDSA")
	out := flag.String("out", "signing.pem", "private key output path")
	rsaBits := flag.Int("rsa-bits", 0, "RSA key size (RS256 only, 0 = default)")
	flag.Parse()

	priv, err := cryptox.GenerateKeyPEM(*alg, *rsaBits)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	pub, err := cryptox.PublicKeyPEM(priv)
	if err != nil {
		log.Fatalf("derive public key: %v", err)
	}

	if err := os.WriteFile(*out, priv, 0o600); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	pubPath := *out + ".pub"
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		log.Fatalf("write %s: %v", pubPath, err)
	}

	fmt.Printf("wrote %s and %s (%s)\n", *out, pubPath, *alg)
}
