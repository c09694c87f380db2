package domain

import "time"

// Tenant is an isolated workspace a principal can belong to.
type Tenant struct {
	ID   string
	Name string
	Plan PlanTier
	// RequireMFA forces step-up authentication for every operation scoped
	// to this tenant.
	RequireMFA bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
