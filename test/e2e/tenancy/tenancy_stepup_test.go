package tenancy_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/veridianhq/tenancy/pkg/tenancysdk"
)

// TestMFAEnrollmentAndStepUp walks the full TOTP lifecycle:
// 1. A member enrolls a TOTP authenticator and verifies it
// 2. The next login returns a step-up challenge instead of a session
// 3. A wrong code is refused; the right code yields an elevated session
func TestMFAEnrollmentAndStepUp(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	token := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{})
	redeemSignup(t, client, token, "careful@example.com", "Careful", "Careful123!pass")
	user := loginAs(t, client, "careful@example.com", "Careful123!pass")

	// Enroll and verify the authenticator.
	enroll, err := user.EnrollMFA(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret, "Enrollment should return the shared secret")
	require.NotEmpty(t, enroll.QRCode, "Enrollment should return a provisioning URI")

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, user.VerifyMFA(t.Context(), code))

	t.Logf("TOTP enrolled and verified")

	// Logins now stop at a challenge.
	challenge, err := client.Login(t.Context(), "careful@example.com", "Careful123!pass")
	require.NoError(t, err)
	require.True(t, challenge.StepUpRequired, "Login should demand step-up once MFA is enabled")
	require.NotEmpty(t, challenge.ChallengeToken)
	require.Empty(t, challenge.SessionToken, "No session before the challenge completes")

	// A wrong code is refused and the challenge stays pending.
	_, err = client.CompleteStepUp(t.Context(), challenge.ChallengeToken, "000000")
	assertAPIError(t, err, http.StatusUnauthorized, "UNAUTHENTICATED")

	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)

	session, err := client.CompleteStepUp(t.Context(), challenge.ChallengeToken, code)
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionToken, "Completing the challenge should issue a session")

	elevated := client.WithSession(session.SessionToken)
	profile, err := elevated.Me(t.Context())
	require.NoError(t, err)
	require.True(t, profile.MFAEnabled)

	t.Logf("Elevated session issued")

	// Challenges are single use.
	_, err = client.CompleteStepUp(t.Context(), challenge.ChallengeToken, code)
	assertAPIError(t, err, http.StatusUnauthorized, "UNAUTHENTICATED")
}

// TestStepUpFromExistingSession verifies an authenticated principal can
// raise their assurance without logging in again.
func TestStepUpFromExistingSession(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	token := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{})
	redeemSignup(t, client, token, "late@example.com", "Late", "LateUser123!pass")
	user := loginAs(t, client, "late@example.com", "LateUser123!pass")

	enroll, err := user.EnrollMFA(t.Context())
	require.NoError(t, err)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, user.VerifyMFA(t.Context(), code))

	// The base session from before enrollment can begin a challenge.
	challenge, err := user.BeginStepUp(t.Context())
	require.NoError(t, err)
	require.True(t, challenge.StepUpRequired)
	require.NotEmpty(t, challenge.ChallengeToken)

	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)

	session, err := client.CompleteStepUp(t.Context(), challenge.ChallengeToken, code)
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionToken)
}

// TestMFAEnrollmentValidation covers enrollment edge cases over the wire.
func TestMFAEnrollmentValidation(t *testing.T) {
	baseURL, cleanup := setupTenancyContainer(t)
	defer cleanup()

	client := tenancysdk.NewClient(baseURL)
	admin := loginAdmin(t, client)

	token := mintSignupToken(t, admin, tenancysdk.MintTokenRequest{})
	redeemSignup(t, client, token, "fumble@example.com", "Fumble", "Fumble123!pass")
	user := loginAs(t, client, "fumble@example.com", "Fumble123!pass")

	// Verification before enrollment has nothing to verify against.
	err := user.VerifyMFA(t.Context(), "123456")
	assertAPIError(t, err, http.StatusConflict, "INVALID_STATE")

	// A wrong code does not enable MFA, so login stays single factor.
	_, err = user.EnrollMFA(t.Context())
	require.NoError(t, err)
	err = user.VerifyMFA(t.Context(), "000000")
	assertAPIError(t, err, http.StatusUnauthorized, "UNAUTHENTICATED")

	resp, err := client.Login(t.Context(), "fumble@example.com", "Fumble123!pass")
	require.NoError(t, err)
	require.False(t, resp.StepUpRequired, "Unverified enrollment must not lock the account")

	// Anonymous enrollment is rejected.
	_, err = client.EnrollMFA(t.Context())
	assertAPIError(t, err, http.StatusUnauthorized, "UNAUTHENTICATED")
}
