package token

import "errors"

// Verification error taxonomy. Callers branch on these internally (logging,
// metrics, replay handling) but must surface GenericAuthMessage to clients so
// error text never reveals which check failed.
var (
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrUnknownKid       = errors.New("token kid not in verification set")
)

// GenericAuthMessage is the single client-facing message for every
// verification failure.
const GenericAuthMessage = "invalid credential"

// IsVerificationError reports whether err belongs to the verification taxonomy.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrUnknownKid)
}
