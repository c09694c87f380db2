package service

import (
	"context"
	"errors"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

// MFAService handles TOTP enrollment. Enrollment is two-phase: EnrollTOTP
// stores a pending secret, VerifyTOTP proves the authenticator works and
// only then flips MFA on.
type MFAService struct {
	Store store.Store

	// Issuer appears in authenticator apps (e.g. "Veridian").
	Issuer string
}

// EnrollTOTP generates a TOTP secret for the principal and returns the
// provisioning details. MFA stays disabled until VerifyTOTP succeeds.
func (s *MFAService) EnrollTOTP(ctx context.Context, principalID string) (domain.MFAEnrollResponse, *domain.Fault) {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.MFAEnrollResponse{}, domain.Faultf(domain.FaultUnauthenticated, "authentication required")
	}
	if err != nil {
		log.Error("principal lookup failed", "principal_id", principalID, "err", err)
		return domain.MFAEnrollResponse{}, domain.Internalf("internal error")
	}

	if principal.MFAEnabled() {
		return domain.MFAEnrollResponse{}, domain.Faultf(domain.FaultAlreadyExists, "multi-factor authentication is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: principal.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Error("totp generation failed", "err", err)
		return domain.MFAEnrollResponse{}, domain.Internalf("internal error")
	}

	// Re-enrolling before verification replaces the pending secret.
	if err := s.Store.Principals().UpdateTOTPSecret(ctx, principal.ID, key.Secret()); err != nil {
		log.Error("totp secret persistence failed", "principal_id", principal.ID, "err", err)
		return domain.MFAEnrollResponse{}, domain.Internalf("internal error")
	}

	log.Info("totp enrollment started", "principal_id", principal.ID)
	return domain.MFAEnrollResponse{
		Secret:  key.Secret(),
		QRCode:  key.URL(),
		Issuer:  s.Issuer,
		Account: principal.Email,
	}, nil
}

// VerifyTOTP checks a code against the pending secret and enables MFA.
func (s *MFAService) VerifyTOTP(ctx context.Context, principalID, code string) *domain.Fault {
	log := slogx.FromContext(ctx)

	principal, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Faultf(domain.FaultUnauthenticated, "authentication required")
	}
	if err != nil {
		log.Error("principal lookup failed", "principal_id", principalID, "err", err)
		return domain.Internalf("internal error")
	}

	if principal.MFAEnabled() {
		return domain.Faultf(domain.FaultAlreadyExists, "multi-factor authentication is already enabled")
	}
	if principal.TOTPSecret == nil || *principal.TOTPSecret == "" {
		return domain.Faultf(domain.FaultInvalidState, "enroll before verifying")
	}

	if !totp.Validate(code, *principal.TOTPSecret) {
		log.Warn("totp verification failed", "principal_id", principal.ID)
		return domain.Faultf(domain.FaultUnauthenticated, "invalid code")
	}

	if err := s.Store.Principals().EnableMFA(ctx, principal.ID); err != nil {
		log.Error("mfa enablement failed", "principal_id", principal.ID, "err", err)
		return domain.Internalf("internal error")
	}

	log.Info("mfa enabled", "principal_id", principal.ID)
	return nil
}
