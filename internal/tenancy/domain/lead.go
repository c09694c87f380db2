package domain

import "time"

// WaitlistLead is a marketing-site wait-list signup. Wait-list-origin
// credential tokens reference a lead so the provisioned tenant can be named
// after the lead's company.
type WaitlistLead struct {
	ID        string
	Email     string
	Company   string
	CreatedAt time.Time
}

// TenantName returns the name a wait-list provisioned tenant should get,
// falling back to the redeeming principal's name when the lead has no
// company recorded.
func (l WaitlistLead) TenantName(principalName string) string {
	if l.Company != "" {
		return l.Company
	}
	return principalName
}
