package auth

// Requirement is a requested capability checked against a principal.
type Requirement struct {
	admin         bool
	scoped        bool
	opportunityID string
}

// AuthenticatedOnly passes for any signed-in principal.
func AuthenticatedOnly() Requirement {
	return Requirement{}
}

// AdminOnly passes for signed-in admins.
func AdminOnly() Requirement {
	return Requirement{admin: true}
}

// AdminForOpportunity passes for admins whose assignment covers the given
// opportunity. Admins without an assignment are unrestricted.
func AdminForOpportunity(opportunityID string) Requirement {
	return Requirement{admin: true, scoped: true, opportunityID: opportunityID}
}

// CanAccess is the pure access decision: no side effects, no IO. It gates
// both operations and the pending-list query filters.
func CanAccess(principal *Principal, req Requirement) bool {
	if principal == nil {
		return false
	}
	if req.admin && !principal.IsAdmin {
		return false
	}
	if req.scoped && principal.OpportunityID != "" && principal.OpportunityID != req.opportunityID {
		return false
	}
	return true
}
