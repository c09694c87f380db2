package domain

import "fmt"

// FaultKind is the closed taxonomy of terminal request failures. Every kind
// maps to exactly one caller action (challenge MFA, prompt sign-in, show
// upgrade, ...), so additions here ripple into the HTTP error mapping by
// design of the exhaustive switch there.
type FaultKind string

const (
	FaultUnauthenticated FaultKind = "UNAUTHENTICATED"
	FaultAccessExpired   FaultKind = "ACCESS_EXPIRED"
	FaultStepUpRequired  FaultKind = "STEP_UP_REQUIRED"
	FaultForbidden       FaultKind = "FORBIDDEN"
	FaultNotFound        FaultKind = "NOT_FOUND"
	FaultInvalidState    FaultKind = "INVALID_STATE"
	FaultExpired         FaultKind = "EXPIRED"
	FaultExhausted       FaultKind = "EXHAUSTED"
	FaultDomainForbidden FaultKind = "DOMAIN_FORBIDDEN"
	FaultAlreadyExists   FaultKind = "ALREADY_EXISTS"
	FaultAlreadyRedeemed FaultKind = "ALREADY_REDEEMED"
	FaultPlanRequired    FaultKind = "PLAN_REQUIRED"
	FaultFeatureDisabled FaultKind = "FEATURE_DISABLED"
	FaultInternal        FaultKind = "INTERNAL"
)

// Fault is a typed terminal failure. Guards and the redemption engine
// return either a result or one Fault, never both and never a partial effect.
type Fault struct {
	Kind    FaultKind
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Faultf builds a Fault with a formatted message.
func Faultf(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected error as an INTERNAL fault. The underlying
// detail belongs in server logs, never in the message shown to callers.
func Internalf(format string, args ...any) *Fault {
	return Faultf(FaultInternal, format, args...)
}

// AsFault returns err as a *Fault, wrapping unknown errors as INTERNAL with
// an opaque message.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}
	if f, ok := err.(*Fault); ok {
		return f
	}
	return &Fault{Kind: FaultInternal, Message: "internal error"}
}
