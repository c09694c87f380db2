// Package jwtx issues and verifies the EdDSA-signed session tokens the HTTP
// layer uses to carry principal identity and authentication assurance
// between requests.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens.
const DefaultSessionTTL = 12 * time.Hour

// AMR values recorded in session tokens.
//
//	"pwd":  password authentication
//	"otp":  TOTP code verified
//	"mfa":  multi-factor (step-up complete)
const (
	AMRPassword = "pwd"
	AMROTP      = "otp"
	AMRMFA      = "mfa"
)

// SessionClaims are the claims embedded in a session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	// AMR is the Authentication Methods Reference. A session that has
	// completed step-up carries "mfa"; that is the elevated assurance
	// signal the guard pipeline reads.
	AMR []string `json:"amr,omitempty"`

	// Email of the authenticated principal, for display and logging.
	Email string `json:"email,omitempty"`
}

// Elevated reports whether the session has completed step-up MFA.
func (c SessionClaims) Elevated() bool {
	return slices.Contains(c.AMR, AMRMFA)
}

// ValidateExpiry checks the exp claim against the current time.
func (c SessionClaims) ValidateExpiry() error {
	if c.ExpiresAt == nil || time.Now().After(c.ExpiresAt.Time) {
		return jwt.ErrTokenExpired
	}
	return nil
}

// NewSessionClaims builds minimally-correct session claims.
func NewSessionClaims(
	subject, email, issuer string,
	amr []string,
	ttl time.Duration,
	now time.Time,
) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		AMR:   amr,
		Email: email,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for a credential service.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
