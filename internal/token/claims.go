// Package token encodes, issues, and verifies the signed session credentials:
// short-lived access tokens and ledger-backed refresh tokens.
package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Type distinguishes access credentials from refresh credentials.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims is the credential payload: registered claims plus the tenant,
// token type, and refresh-lineage fields.
type Claims struct {
	jwt.RegisteredClaims
	TenantID        string `json:"tenant"`
	TokenType       Type   `json:"type"`
	RotationCounter int    `json:"rotation_counter"`
	LineageID       string `json:"lineage_id,omitempty"` // refresh only
	DeviceID        string `json:"device_id,omitempty"`  // refresh only
}

// Header is the decoded, unverified token header. Used only to pick the
// verification candidate before the signature check.
type Header struct {
	Alg string
	Kid string
}
