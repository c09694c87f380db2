package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/jwtx"
)

func newSessionService(t *testing.T) (*SessionService, *MFAService, store.Store) {
	t.Helper()

	st := newStore(t)
	sessions, err := jwtx.NewEphemeralSessions()
	require.NoError(t, err)

	sessionSvc := &SessionService{
		Store:    st,
		Sessions: sessions,
		Issuer:   "tenancy-test",
	}
	mfaSvc := &MFAService{
		Store:  st,
		Issuer: "tenancy-test",
	}
	return sessionSvc, mfaSvc, st
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, st := newSessionService(t)
	principal := seedPrincipal(t, st, "alice@example.com")

	t.Run("issues a base session on a correct password", func(t *testing.T) {
		result, fault := svc.Login(ctx, "alice@example.com", "correct horse battery staple")
		require.Nil(t, fault)
		require.Nil(t, result.StepUp)
		require.NotEmpty(t, result.SessionToken)

		claims, err := svc.Sessions.Verify(result.SessionToken)
		require.NoError(t, err)
		require.Equal(t, principal.ID, claims.Subject)
		require.False(t, claims.Elevated())
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		_, fault := svc.Login(ctx, "alice@example.com", "wrong")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultUnauthenticated, fault.Kind)
	})

	t.Run("rejects an unknown email with the same fault", func(t *testing.T) {
		_, fault := svc.Login(ctx, "nobody@example.com", "whatever")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultUnauthenticated, fault.Kind)
	})

	t.Run("expired access blocks login", func(t *testing.T) {
		p := seedPrincipal(t, st, "lapsed@example.com")
		past := time.Now().Add(-time.Hour)
		require.NoError(t, st.Principals().SetAccessExpiry(ctx, p.ID, &past))

		_, fault := svc.Login(ctx, "lapsed@example.com", "correct horse battery staple")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultAccessExpired, fault.Kind)
	})
}

func TestStepUpFlow(t *testing.T) {
	ctx := context.Background()
	svc, mfa, st := newSessionService(t)
	principal := seedPrincipal(t, st, "carol@example.com")

	// Enroll and verify TOTP so login demands step-up.
	enroll, fault := mfa.EnrollTOTP(ctx, principal.ID)
	require.Nil(t, fault)
	require.NotEmpty(t, enroll.Secret)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.Nil(t, mfa.VerifyTOTP(ctx, principal.ID, code))

	// Login now yields a challenge instead of a session.
	result, fault := svc.Login(ctx, "carol@example.com", "correct horse battery staple")
	require.Nil(t, fault)
	require.Empty(t, result.SessionToken)
	require.NotNil(t, result.StepUp)
	require.True(t, result.StepUp.StepUpRequired)
	require.Contains(t, result.StepUp.Methods, "totp")

	t.Run("wrong code burns an attempt", func(t *testing.T) {
		_, fault := svc.CompleteStepUp(ctx, result.StepUp.ChallengeToken, "000000")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultUnauthenticated, fault.Kind)
	})

	t.Run("valid code yields an elevated session", func(t *testing.T) {
		code, err := totp.GenerateCode(enroll.Secret, time.Now())
		require.NoError(t, err)

		elevated, fault := svc.CompleteStepUp(ctx, result.StepUp.ChallengeToken, code)
		require.Nil(t, fault)
		require.NotEmpty(t, elevated.SessionToken)

		claims, err := svc.Sessions.Verify(elevated.SessionToken)
		require.NoError(t, err)
		require.True(t, claims.Elevated())
	})

	t.Run("challenge is single use", func(t *testing.T) {
		code, err := totp.GenerateCode(enroll.Secret, time.Now())
		require.NoError(t, err)

		_, fault := svc.CompleteStepUp(ctx, result.StepUp.ChallengeToken, code)
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultUnauthenticated, fault.Kind)
	})
}

func TestStepUpAttemptCap(t *testing.T) {
	ctx := context.Background()
	svc, mfa, st := newSessionService(t)
	principal := seedPrincipal(t, st, "dave@example.com")

	enroll, fault := mfa.EnrollTOTP(ctx, principal.ID)
	require.Nil(t, fault)
	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.Nil(t, mfa.VerifyTOTP(ctx, principal.ID, code))

	challenge, fault := svc.BeginStepUp(ctx, principal.ID)
	require.Nil(t, fault)

	for range domain.StepUpMaxAttempts {
		_, fault := svc.CompleteStepUp(ctx, challenge.ChallengeToken, "000000")
		require.NotNil(t, fault)
	}

	// Even a valid code is refused once the cap is hit.
	code, err = totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	_, fault = svc.CompleteStepUp(ctx, challenge.ChallengeToken, code)
	require.NotNil(t, fault)
	require.Equal(t, domain.FaultUnauthenticated, fault.Kind)
}

func TestMFAEnrollment(t *testing.T) {
	ctx := context.Background()
	_, mfa, st := newSessionService(t)
	principal := seedPrincipal(t, st, "erin@example.com")

	t.Run("verify before enroll fails", func(t *testing.T) {
		fault := mfa.VerifyTOTP(ctx, principal.ID, "123456")
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultInvalidState, fault.Kind)
	})

	enroll, fault := mfa.EnrollTOTP(ctx, principal.ID)
	require.Nil(t, fault)
	require.Contains(t, enroll.QRCode, "otpauth://")

	t.Run("wrong code does not enable", func(t *testing.T) {
		fault := mfa.VerifyTOTP(ctx, principal.ID, "000000")
		require.NotNil(t, fault)

		p, err := st.Principals().GetPrincipalByID(ctx, principal.ID)
		require.NoError(t, err)
		require.False(t, p.MFAEnabled())
	})

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	require.Nil(t, mfa.VerifyTOTP(ctx, principal.ID, code))

	t.Run("re-enrollment after enable is rejected", func(t *testing.T) {
		_, fault := mfa.EnrollTOTP(ctx, principal.ID)
		require.NotNil(t, fault)
		require.Equal(t, domain.FaultAlreadyExists, fault.Kind)
	})
}
