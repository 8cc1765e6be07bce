package security

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM, secret, or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// MinHMACSecretLen is the minimum HMAC secret length in bytes (256 bits).
const MinHMACSecretLen = 32

// MinRSABits is the minimum RSA modulus size accepted for signing keys.
const MinRSABits = 2048

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
// Literal "\n" sequences in inline PEM (common in env vars) are converted to newlines.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PEM-encoded private key (RSA or Ed25519). s may be inline PEM or a file path.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if key.N.BitLen() < MinRSABits {
			return nil, ErrInvalidKey
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		switch k := key.(type) {
		case *rsa.PrivateKey:
			if k.N.BitLen() < MinRSABits {
				return nil, ErrInvalidKey
			}
			return k, nil
		case ed25519.PrivateKey:
			return k, nil
		default:
			return nil, ErrInvalidKey
		}
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PEM-encoded public key (RSA or Ed25519). s may be inline PEM or a file path.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case *rsa.PublicKey, ed25519.PublicKey:
			return key, nil
		default:
			return nil, ErrInvalidKey
		}
	default:
		return nil, ErrInvalidKey
	}
}

// DecodeHMACSecret parses HMAC key material: standard base64 if it decodes to at
// least MinHMACSecretLen bytes, otherwise the raw string bytes. Secrets shorter
// than MinHMACSecretLen (256 bits) are rejected.
func DecodeHMACSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) >= MinHMACSecretLen {
		return b, nil
	}
	if len(s) < MinHMACSecretLen {
		return nil, ErrInvalidKey
	}
	return []byte(s), nil
}

// KeyAlg returns "RS256" for RSA and "EdDSA" for Ed25519 public keys; empty otherwise.
func KeyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case ed25519.PublicKey:
		return "EdDSA"
	default:
		return ""
	}
}
