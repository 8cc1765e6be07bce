// keygen generates signing-key material for the key store: an HMAC secret,
// an RSA private key, or an Ed25519 private key, plus a fresh kid. Output is
// ready for ACTIVE_KEY_ID / ACTIVE_KEY_MATERIAL (print the PEM to a file for
// the asymmetric algorithms). Kids are never reused; generate a new one for
// every rotation.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
)

func main() {
	alg := flag.String("alg", "EdDSA", "Signing algorithm: HS256, RS256, or EdDSA")
	rsaBits := flag.Int("rsa-bits", 2048, "RSA key size in bits (RS256 only)")
	flag.Parse()

	kid := uuid.New().String()

	switch *alg {
	case "HS256":
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			fatal("generate secret: %v", err)
		}
		fmt.Printf("kid: %s\n", kid)
		fmt.Printf("secret (base64): %s\n", base64.StdEncoding.EncodeToString(secret))
	case "RS256":
		priv, err := rsa.GenerateKey(rand.Reader, *rsaBits)
		if err != nil {
			fatal("generate RSA key: %v", err)
		}
		printPEM(kid, priv)
	case "EdDSA":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			fatal("generate Ed25519 key: %v", err)
		}
		printPEM(kid, priv)
	default:
		fatal("unsupported algorithm %q; use HS256, RS256, or EdDSA", *alg)
	}
}

func printPEM(kid string, priv any) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		fatal("marshal private key: %v", err)
	}
	fmt.Printf("kid: %s\n", kid)
	fmt.Println("private key (PKCS#8 PEM):")
	if err := pem.Encode(os.Stdout, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		fatal("encode PEM: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keygen: "+format+"\n", args...)
	os.Exit(1)
}
