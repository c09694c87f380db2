package domain

import "time"

// StepUpChallengeTTL bounds how long a pending challenge stays redeemable.
const StepUpChallengeTTL = 5 * time.Minute

// StepUpMaxAttempts caps failed TOTP submissions per challenge.
const StepUpMaxAttempts = 5

// StepUpChallenge is a pending MFA challenge issued when a login or a
// guarded operation requires elevated assurance. The client exchanges it,
// plus a valid TOTP code, for an elevated session.
type StepUpChallenge struct {
	ID          string // the opaque challenge token handed to the client
	PrincipalID string
	Attempts    int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the challenge can no longer be completed.
func (c StepUpChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// StepUpChallengeResponse is returned when authentication requires MFA.
type StepUpChallengeResponse struct {
	StepUpRequired bool     `json:"step_up_required"` // always true
	ChallengeToken string   `json:"challenge_token"`
	Methods        []string `json:"methods"` // e.g. ["totp"]
}

// MFAEnrollResponse carries a freshly generated TOTP secret back to the
// client. Enrollment is pending until the first code verifies.
type MFAEnrollResponse struct {
	Secret  string `json:"secret"`
	QRCode  string `json:"qr_code"` // otpauth:// provisioning URL
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
