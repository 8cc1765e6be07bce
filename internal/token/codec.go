package token

import (
	"github.com/golang-jwt/jwt/v5"

	"auth-token-service/internal/keystore"
)

// signingMethod maps a keystore algorithm to its jwt signing method. The
// method is always derived from the key, never from attacker-controlled
// header fields.
func signingMethod(alg keystore.Algorithm) jwt.SigningMethod {
	switch alg {
	case keystore.AlgHS256:
		return jwt.SigningMethodHS256
	case keystore.AlgRS256:
		return jwt.SigningMethodRS256
	case keystore.AlgEdDSA:
		return jwt.SigningMethodEdDSA
	default:
		return nil
	}
}

// Encode signs claims with key and returns the compact three-segment
// credential. The signature algorithm is pinned to key.Algorithm and the
// header carries the key's kid. Deterministic for identical claims and key.
func Encode(claims *Claims, key keystore.SigningKey) (string, error) {
	method := signingMethod(key.Algorithm)
	if method == nil {
		return "", ErrSignatureInvalid
	}
	signKey := key.SignKey()
	if signKey == nil {
		return "", keystore.ErrNoActiveKey
	}
	tok := jwt.NewWithClaims(method, claims)
	tok.Header["kid"] = key.Kid
	return tok.SignedString(signKey)
}

// DecodeUnverified parses the header and claims without checking the
// signature. Used only to look up the verification candidate by kid; the
// result must never be trusted before Verify.
func DecodeUnverified(tokenString string) (Header, *Claims, error) {
	claims := &Claims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return Header{}, nil, ErrMalformed
	}
	hdr := Header{}
	if alg, ok := parsed.Header["alg"].(string); ok {
		hdr.Alg = alg
	}
	if kid, ok := parsed.Header["kid"].(string); ok {
		hdr.Kid = kid
	}
	return hdr, claims, nil
}
