package http

import (
	"net/http"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/pkg/httpx"
)

// faultStatus maps every fault kind to exactly one HTTP status. The switch
// is exhaustive on purpose: a new kind without a mapping falls through to
// 500, which a test catches.
func faultStatus(kind domain.FaultKind) int {
	switch kind {
	case domain.FaultUnauthenticated:
		return http.StatusUnauthorized
	case domain.FaultAccessExpired, domain.FaultStepUpRequired,
		domain.FaultForbidden, domain.FaultDomainForbidden:
		return http.StatusForbidden
	case domain.FaultNotFound:
		return http.StatusNotFound
	case domain.FaultInvalidState, domain.FaultAlreadyExists,
		domain.FaultAlreadyRedeemed:
		return http.StatusConflict
	case domain.FaultExpired, domain.FaultExhausted:
		return http.StatusGone
	case domain.FaultPlanRequired:
		return http.StatusPaymentRequired
	case domain.FaultFeatureDisabled:
		return http.StatusServiceUnavailable
	case domain.FaultInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// writeFault renders a fault as the uniform error body. Internal faults get
// an opaque description; the detail already went to the server log.
func writeFault(w http.ResponseWriter, fault *domain.Fault) {
	description := fault.Message
	if fault.Kind == domain.FaultInternal {
		description = "internal error"
	}
	httpx.WriteError(w, faultStatus(fault.Kind), string(fault.Kind), description)
}

func writeBadRequest(w http.ResponseWriter, description string) {
	httpx.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", description)
}
