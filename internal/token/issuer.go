package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"auth-token-service/internal/keystore"
)

// Issuer mints access and refresh credentials signed with the keystore's
// active key. Access tokens are self-contained and never persisted; refresh
// tokens are recorded by the ledger.
type Issuer struct {
	keys       *keystore.Store
	iss        string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer returns an Issuer stamping iss on every credential. accessTTL
// should be minutes, not hours; session longevity comes from the refresh
// ledger, not from long-lived access tokens.
func NewIssuer(keys *keystore.Store, iss string, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}
	return &Issuer{keys: keys, iss: iss, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess mints an access token for the subject in the tenant, expiring
// at now + accessTTL. Always signs with the active key.
func (i *Issuer) IssueAccess(subject, tenant string, now time.Time) (string, *Claims, error) {
	return i.issue(subject, tenant, TypeAccess, "", "", 0, now, i.accessTTL)
}

// IssueRefresh mints a refresh token bound to a device and a lineage. An
// empty lineageID starts a fresh lineage (new login); rotation passes the
// existing lineage and the incremented counter.
func (i *Issuer) IssueRefresh(subject, tenant, deviceID, lineageID string, rotationCounter int, now time.Time) (string, *Claims, error) {
	if lineageID == "" {
		lineageID = uuid.New().String()
	}
	return i.issue(subject, tenant, TypeRefresh, deviceID, lineageID, rotationCounter, now, i.refreshTTL)
}

func (i *Issuer) issue(subject, tenant string, typ Type, deviceID, lineageID string, counter int, now time.Time, ttl time.Duration) (string, *Claims, error) {
	now = now.UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    i.iss,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID:        tenant,
		TokenType:       typ,
		RotationCounter: counter,
		LineageID:       lineageID,
		DeviceID:        deviceID,
	}
	signed, err := Encode(claims, i.keys.Active())
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}
