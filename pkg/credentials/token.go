package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a short-lived session credential together with the instant it was
// acquired. The value is opaque to callers; when it happens to be a JWT, the
// embedded exp claim additionally bounds its usability.
type Token struct {
	Value      string
	AcquiredAt time.Time
}

// Empty reports whether the token carries no credential.
func (t Token) Empty() bool {
	return t.Value == ""
}

// ExpiresAt extracts the exp claim when the token value is a three-segment
// JWT. The signature is not verified: the client has no signing key, and only
// needs the expiry hint to avoid presenting a token about to lapse.
func (t Token) ExpiresAt() (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.Value, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// UsableAt reports whether the token may still be presented at the given
// instant: it must be younger than the validity window, and when an exp claim
// is present, now must precede exp minus the pre-expiry threshold.
func (t Token) UsableAt(now time.Time, validity, preExpiry time.Duration) bool {
	if t.Empty() {
		return false
	}
	if now.Sub(t.AcquiredAt) >= validity {
		return false
	}
	if exp, ok := t.ExpiresAt(); ok && !now.Before(exp.Add(-preExpiry)) {
		return false
	}
	return true
}
