package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"auth-token-service/internal/keystore"
)

// Leeway absorbs clock skew between the issuing and verifying hosts when
// checking exp and nbf.
const Leeway = 60 * time.Second

// Verifier checks credential signatures against the keystore's current
// snapshot. A single snapshot is read per call, so a concurrent rotation
// never mixes key generations inside one verification.
type Verifier struct {
	keys *keystore.Store
	iss  string
}

// NewVerifier returns a Verifier that additionally requires the iss claim
// to match iss when it is non-empty.
func NewVerifier(keys *keystore.Store, iss string) *Verifier {
	return &Verifier{keys: keys, iss: iss}
}

// Verify checks the token's signature and registered claims and returns the
// verified claims. Tokens carrying a kid are checked against exactly that
// key; a kid outside the snapshot fails with ErrUnknownKid and never falls
// back to other keys. Tokens without a kid are tried against the active key,
// then the next key.
func (v *Verifier) Verify(tokenString string, now time.Time) (*Claims, error) {
	hdr, _, err := DecodeUnverified(tokenString)
	if err != nil {
		return nil, err
	}

	snap := v.keys.Snapshot()
	var candidates []*keystore.SigningKey
	if hdr.Kid != "" {
		key := snap.ByKid(hdr.Kid)
		if key == nil {
			return nil, ErrUnknownKid
		}
		candidates = []*keystore.SigningKey{key}
	} else {
		candidates = snap.Candidates()
	}

	var lastErr error
	for _, key := range candidates {
		// The header algorithm must agree with the key's algorithm; a
		// mismatch is an algorithm-substitution attempt, not a usable token.
		if hdr.Alg != string(key.Algorithm) {
			lastErr = ErrSignatureInvalid
			continue
		}
		claims, err := v.verifyWith(tokenString, key, now)
		if err == nil {
			return claims, nil
		}
		lastErr = err
		// Expiry is only reported for an authentic signature, so no other
		// candidate can do better.
		if errors.Is(err, ErrExpired) || errors.Is(err, ErrMalformed) {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = ErrSignatureInvalid
	}
	return nil, lastErr
}

// VerifyAccess verifies tokenString and requires it to be an access token.
func (v *Verifier) VerifyAccess(tokenString string, now time.Time) (*Claims, error) {
	claims, err := v.Verify(tokenString, now)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrSignatureInvalid
	}
	return claims, nil
}

// VerifyRefresh verifies tokenString and requires it to be a refresh token.
func (v *Verifier) VerifyRefresh(tokenString string, now time.Time) (*Claims, error) {
	claims, err := v.Verify(tokenString, now)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrSignatureInvalid
	}
	return claims, nil
}

func (v *Verifier) verifyWith(tokenString string, key *keystore.SigningKey, now time.Time) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{string(key.Algorithm)}),
		jwt.WithLeeway(Leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if v.iss != "" {
		opts = append(opts, jwt.WithIssuer(v.iss))
	}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key.VerifyKey(), nil
	}, opts...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	return claims, nil
}

// mapJWTError collapses golang-jwt's error chain into the package taxonomy.
// golang-jwt v5 checks the signature before the claims, so an expiry error
// here always means the signature was authentic.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrSignatureInvalid
	}
}
