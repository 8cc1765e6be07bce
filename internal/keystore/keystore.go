// Package keystore holds the signing/verification key set and performs
// zero-downtime rotation. Verification always reads an immutable snapshot,
// so a rotation can never tear the (active, next) pair under a reader.
package keystore

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"auth-token-service/internal/config"
	"auth-token-service/internal/security"
)

// Algorithm identifies a supported signing algorithm.
type Algorithm string

const (
	AlgHS256 Algorithm = "HS256"
	AlgRS256 Algorithm = "RS256"
	AlgEdDSA Algorithm = "EdDSA"
)

// Role distinguishes the key that signs new credentials from the one kept
// only for verification during a rotation grace period.
type Role string

const (
	RoleActive Role = "active"
	RoleNext   Role = "next"
)

// Sentinel errors for key loading and rotation.
var (
	ErrNoActiveKey = errors.New("no active signing key")
	ErrKidReused   = errors.New("kid was already used by a retired key")
	ErrUnknownKid  = errors.New("kid not in verification set")
	ErrWeakKey     = errors.New("key material below minimum strength")
)

// SigningKey is one key in the store. Material is held in unexported fields
// and never serialized; callers outside this package see only kid and algorithm.
type SigningKey struct {
	Kid       string
	Algorithm Algorithm
	Role      Role

	secret []byte        // HS256 only
	signer crypto.Signer // RS256/EdDSA; nil for verify-only keys
	public crypto.PublicKey
}

// CanSign reports whether this key carries private material.
func (k *SigningKey) CanSign() bool {
	if k == nil {
		return false
	}
	return len(k.secret) > 0 || k.signer != nil
}

// SignKey returns the value golang-jwt needs to sign with this key:
// the secret bytes for HS256, the private key for RS256/EdDSA.
// Returns nil for verify-only keys.
func (k *SigningKey) SignKey() any {
	switch k.Algorithm {
	case AlgHS256:
		if len(k.secret) == 0 {
			return nil
		}
		return k.secret
	default:
		if k.signer == nil {
			return nil
		}
		return k.signer
	}
}

// VerifyKey returns the value golang-jwt needs to verify a signature made
// with this key: the secret bytes for HS256, the public key otherwise.
func (k *SigningKey) VerifyKey() any {
	if k.Algorithm == AlgHS256 {
		return k.secret
	}
	return k.public
}

// Snapshot is an immutable view of the verification set at one rotation
// generation. Active is always present after a successful Load.
type Snapshot struct {
	Version uint64
	Active  SigningKey
	Next    *SigningKey
}

// Candidates returns the verification candidates in deterministic order:
// active first, then next when a rotation is in progress.
func (s *Snapshot) Candidates() []*SigningKey {
	out := []*SigningKey{&s.Active}
	if s.Next != nil {
		out = append(out, s.Next)
	}
	return out
}

// ByKid returns the candidate with the given kid, or nil. A kid that does not
// name a candidate must not fall back to other keys; the caller rejects it.
func (s *Snapshot) ByKid(kid string) *SigningKey {
	for _, k := range s.Candidates() {
		if k.Kid == kid {
			return k
		}
	}
	return nil
}

// Health is side-effect-free introspection of the store. Never carries key material.
type Health struct {
	Algorithm        string `json:"algorithm"`
	ActiveKid        string `json:"active_kid"`
	KeysLoaded       bool   `json:"keysLoaded"`
	NextKidAvailable bool   `json:"nextKidAvailable"`
}

// Store owns the key set. Reads go through an atomic snapshot pointer;
// rotation swaps the whole snapshot under a mutex that serializes writers only.
type Store struct {
	snap atomic.Pointer[Snapshot]

	mu      sync.Mutex
	retired map[string]bool // kids that must never verify or be reused
	version uint64
}

// Load builds a Store from config. It fails fast when the active key is
// missing, malformed, or below the algorithm's minimum strength.
func Load(cfg *config.Config) (*Store, error) {
	if cfg == nil || cfg.ActiveKeyID == "" || cfg.ActiveKeyMaterial == "" {
		return nil, ErrNoActiveKey
	}
	alg := Algorithm(cfg.TokenAlgorithm)
	active, err := buildKey(alg, cfg.ActiveKeyID, cfg.ActiveKeyMaterial, RoleActive)
	if err != nil {
		return nil, fmt.Errorf("active key %q: %w", cfg.ActiveKeyID, err)
	}
	if !active.CanSign() {
		return nil, fmt.Errorf("active key %q: %w", cfg.ActiveKeyID, ErrNoActiveKey)
	}

	snap := &Snapshot{Version: 1, Active: *active}
	if cfg.NextKeyID != "" {
		next, err := buildKey(alg, cfg.NextKeyID, cfg.NextKeyMaterial, RoleNext)
		if err != nil {
			return nil, fmt.Errorf("next key %q: %w", cfg.NextKeyID, err)
		}
		snap.Next = next
	}

	s := &Store{retired: make(map[string]bool), version: 1}
	s.snap.Store(snap)
	return s, nil
}

// Snapshot returns the current consistent (active, next) view. The returned
// value stays valid for the caller even if a rotation happens concurrently.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Active returns the key that signs new credentials.
func (s *Store) Active() SigningKey {
	return s.snap.Load().Active
}

// Rotate promotes newKey to active and demotes the current active key to
// next, keeping it verifiable for the grace period. The previous next key,
// if any, is retired. Kids are never reused: rotating to a kid that ever
// existed in this store's lifetime fails.
func (s *Store) Rotate(newKey SigningKey) error {
	if !newKey.CanSign() {
		return ErrNoActiveKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if newKey.Kid == cur.Active.Kid || (cur.Next != nil && newKey.Kid == cur.Next.Kid) || s.retired[newKey.Kid] {
		return ErrKidReused
	}
	if cur.Next != nil {
		s.retired[cur.Next.Kid] = true
	}
	newKey.Role = RoleActive
	demoted := cur.Active
	demoted.Role = RoleNext

	s.version++
	s.snap.Store(&Snapshot{Version: s.version, Active: newKey, Next: &demoted})
	return nil
}

// RetireNext drops the next key from the verification set once every token
// signed with it has provably expired. Tokens bearing its kid are rejected
// as unknown from then on. No-op when no rotation is in progress.
func (s *Store) RetireNext() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if cur.Next == nil {
		return
	}
	s.retired[cur.Next.Kid] = true
	s.version++
	s.snap.Store(&Snapshot{Version: s.version, Active: cur.Active})
}

// Health reports the store's operational state without exposing material.
func (s *Store) Health() Health {
	snap := s.snap.Load()
	return Health{
		Algorithm:        string(snap.Active.Algorithm),
		ActiveKid:        snap.Active.Kid,
		KeysLoaded:       true,
		NextKidAvailable: snap.Next != nil,
	}
}

// NewHMACKey builds an HS256 key from raw secret bytes. Used by Rotate and tests.
func NewHMACKey(kid string, secret []byte) (SigningKey, error) {
	if len(secret) < security.MinHMACSecretLen {
		return SigningKey{}, ErrWeakKey
	}
	cp := make([]byte, len(secret))
	copy(cp, secret)
	return SigningKey{Kid: kid, Algorithm: AlgHS256, Role: RoleActive, secret: cp}, nil
}

// NewSignerKey builds an RS256 or EdDSA key from a private key.
func NewSignerKey(kid string, alg Algorithm, signer crypto.Signer) (SigningKey, error) {
	if signer == nil {
		return SigningKey{}, ErrNoActiveKey
	}
	switch alg {
	case AlgRS256:
		rk, ok := signer.(*rsa.PrivateKey)
		if !ok || rk.N.BitLen() < security.MinRSABits {
			return SigningKey{}, ErrWeakKey
		}
	case AlgEdDSA:
		if _, ok := signer.(ed25519.PrivateKey); !ok {
			return SigningKey{}, ErrWeakKey
		}
	default:
		return SigningKey{}, fmt.Errorf("algorithm %q does not take a signer", alg)
	}
	return SigningKey{Kid: kid, Algorithm: alg, Role: RoleActive, signer: signer, public: signer.Public()}, nil
}

func buildKey(alg Algorithm, kid, material string, role Role) (*SigningKey, error) {
	switch alg {
	case AlgHS256:
		secret, err := security.DecodeHMACSecret(material)
		if err != nil {
			return nil, ErrWeakKey
		}
		k, err := NewHMACKey(kid, secret)
		if err != nil {
			return nil, err
		}
		k.Role = role
		return &k, nil
	case AlgRS256, AlgEdDSA:
		if signer, err := security.ParsePrivateKey(material); err == nil {
			k, err := NewSignerKey(kid, alg, signer)
			if err != nil {
				return nil, err
			}
			k.Role = role
			return &k, nil
		}
		// The next key may be supplied as public-only material: it never signs,
		// it only keeps old tokens verifiable during the grace period.
		if role == RoleNext {
			pub, err := security.ParsePublicKey(material)
			if err != nil {
				return nil, err
			}
			if security.KeyAlg(pub) != string(alg) {
				return nil, security.ErrInvalidKey
			}
			return &SigningKey{Kid: kid, Algorithm: alg, Role: role, public: pub}, nil
		}
		return nil, security.ErrInvalidKey
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
}
