package service

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/cryptox"
	"github.com/veridianhq/tenancy/pkg/jwtx"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

// SessionService authenticates principals and issues signed session tokens.
// Principals with MFA enrolled never receive a session straight from a
// password: the password buys a short-lived step-up challenge instead.
type SessionService struct {
	Store    store.Store
	Sessions *jwtx.Sessions

	// Issuer is the iss/aud value stamped into session tokens.
	Issuer string

	// SessionTTL defaults to jwtx.DefaultSessionTTL.
	SessionTTL time.Duration

	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) ttl() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return jwtx.DefaultSessionTTL
}

// LoginResult is either a session token or a step-up challenge, never both.
type LoginResult struct {
	SessionToken string
	ExpiresAt    time.Time
	StepUp       *domain.StepUpChallengeResponse
	Principal    domain.Principal
}

// Login verifies a password and issues either a base-assurance session or,
// for MFA-enrolled principals, a step-up challenge.
func (s *SessionService) Login(ctx context.Context, email, password string) (LoginResult, *domain.Fault) {
	log := slogx.FromContext(ctx)
	now := s.now()

	principal, err := s.Store.Principals().GetPrincipalByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn comparable time so unknown emails are not distinguishable
		// from wrong passwords by latency.
		_ = cryptox.VerifyPassword(password, cryptox.DummyHash)
		return LoginResult{}, domain.Faultf(domain.FaultUnauthenticated, "invalid email or password")
	}
	if err != nil {
		log.Error("principal lookup failed", "err", err)
		return LoginResult{}, domain.Internalf("internal error")
	}

	if err := cryptox.VerifyPassword(password, principal.PasswordHash); err != nil {
		log.Warn("password verification failed", "principal_id", principal.ID)
		return LoginResult{}, domain.Faultf(domain.FaultUnauthenticated, "invalid email or password")
	}

	if principal.AccessExpired(now) {
		return LoginResult{}, domain.Faultf(domain.FaultAccessExpired, "access has expired")
	}

	if principal.MFAEnabled() {
		resp, fault := s.issueChallenge(ctx, principal.ID, now)
		if fault != nil {
			return LoginResult{}, fault
		}
		return LoginResult{StepUp: resp, Principal: principal}, nil
	}

	return s.issueSession(ctx, principal, []string{jwtx.AMRPassword}, now)
}

// BeginStepUp issues a challenge for an already-authenticated principal who
// needs to elevate their session, typically after a STEP_UP_REQUIRED fault.
func (s *SessionService) BeginStepUp(ctx context.Context, principalID string) (*domain.StepUpChallengeResponse, *domain.Fault) {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.Faultf(domain.FaultUnauthenticated, "authentication required")
	}
	if err != nil {
		log.Error("principal lookup failed", "principal_id", principalID, "err", err)
		return nil, domain.Internalf("internal error")
	}

	if !principal.MFAEnabled() {
		return nil, domain.Faultf(domain.FaultInvalidState, "multi-factor authentication is not enrolled")
	}

	return s.issueChallenge(ctx, principal.ID, s.now())
}

// CompleteStepUp exchanges a pending challenge plus a valid TOTP code for an
// elevated session. The challenge is single-use and attempt-capped.
func (s *SessionService) CompleteStepUp(ctx context.Context, challengeToken, code string) (LoginResult, *domain.Fault) {
	log := slogx.FromContext(ctx)
	now := s.now()

	challenge, err := s.Store.Challenges().GetChallenge(ctx, cryptox.FingerprintToken(challengeToken))
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, domain.Faultf(domain.FaultUnauthenticated, "unknown or expired challenge")
	}
	if err != nil {
		log.Error("challenge lookup failed", "err", err)
		return LoginResult{}, domain.Internalf("internal error")
	}

	if challenge.Expired(now) || challenge.Attempts >= domain.StepUpMaxAttempts {
		if err := s.Store.Challenges().DeleteChallenge(ctx, challenge.ID); err != nil {
			log.Error("challenge cleanup failed", "err", err)
		}
		return LoginResult{}, domain.Faultf(domain.FaultUnauthenticated, "unknown or expired challenge")
	}

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, challenge.PrincipalID)
	if err != nil {
		log.Error("principal lookup failed", "principal_id", challenge.PrincipalID, "err", err)
		return LoginResult{}, domain.Internalf("internal error")
	}
	if principal.TOTPSecret == nil {
		return LoginResult{}, domain.Faultf(domain.FaultInvalidState, "multi-factor authentication is not enrolled")
	}

	if !totp.Validate(code, *principal.TOTPSecret) {
		if _, err := s.Store.Challenges().IncrementChallengeAttempts(ctx, challenge.ID); err != nil {
			log.Error("attempt accounting failed", "err", err)
		}
		log.Warn("step-up code rejected", "principal_id", principal.ID, "attempts", challenge.Attempts+1)
		return LoginResult{}, domain.Faultf(domain.FaultUnauthenticated, "invalid code")
	}

	if err := s.Store.Challenges().DeleteChallenge(ctx, challenge.ID); err != nil {
		log.Error("challenge cleanup failed", "err", err)
	}

	return s.issueSession(ctx, principal, []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}, now)
}

func (s *SessionService) issueChallenge(ctx context.Context, principalID string, now time.Time) (*domain.StepUpChallengeResponse, *domain.Fault) {
	log := slogx.FromContext(ctx)

	raw, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		log.Error("challenge generation failed", "err", err)
		return nil, domain.Internalf("internal error")
	}

	challenge := domain.StepUpChallenge{
		ID:          cryptox.FingerprintToken(raw),
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.StepUpChallengeTTL),
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, challenge); err != nil {
		log.Error("challenge persistence failed", "err", err)
		return nil, domain.Internalf("internal error")
	}

	log.Info("step-up challenge issued", "principal_id", principalID)
	return &domain.StepUpChallengeResponse{
		StepUpRequired: true,
		ChallengeToken: raw,
		Methods:        []string{"totp"},
	}, nil
}

func (s *SessionService) issueSession(ctx context.Context, principal domain.Principal, amr []string, now time.Time) (LoginResult, *domain.Fault) {
	log := slogx.FromContext(ctx)

	claims := jwtx.NewSessionClaims(principal.ID, principal.Email, s.Issuer, amr, s.ttl(), now)
	signed, err := s.Sessions.Sign(claims)
	if err != nil {
		log.Error("session signing failed", "principal_id", principal.ID, "err", err)
		return LoginResult{}, domain.Internalf("internal error")
	}

	log.Info("session issued", "principal_id", principal.ID, "amr", amr)
	return LoginResult{
		SessionToken: signed,
		ExpiresAt:    claims.ExpiresAt.Time,
		Principal:    principal,
	}, nil
}
