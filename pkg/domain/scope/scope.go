// Package scope derives the row-level restrictions that apply to a report
// caller from their role and tenant assignments.
package scope

import (
	"fmt"
	"strings"
)

// =============================================================================
// Role
// =============================================================================

// Role is the data-access role of a report caller.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePartner    Role = "partner"
	RoleSubpartner Role = "subpartner"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RolePartner, RoleSubpartner:
		return true
	}
	return false
}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// =============================================================================
// Target
// =============================================================================

// Target is the logical column a mandatory predicate restricts. Templates
// map each target to a concrete column expression.
type Target string

const (
	TargetTenant  Target = "tenant"
	TargetTracker Target = "tracker"
)

// IsValid returns true if the target is known.
func (t Target) IsValid() bool {
	return t == TargetTenant || t == TargetTracker
}

// =============================================================================
// Caller Scope
// =============================================================================

// CallerScope is the authenticated caller's data-access identity. It is
// derived once per call and never persisted.
type CallerScope struct {
	UserID            string
	Role              Role
	TenantIDs         []int64
	TenantID          *int64
	TrackerConstraint *string
}

// IsAdmin reports whether the caller is unrestricted.
func (s CallerScope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Admin returns an unrestricted scope.
func Admin(userID string) CallerScope {
	return CallerScope{UserID: userID, Role: RoleAdmin}
}

// Partner returns a scope limited to a set of tenants.
func Partner(userID string, tenantIDs ...int64) CallerScope {
	return CallerScope{UserID: userID, Role: RolePartner, TenantIDs: tenantIDs}
}

// Subpartner returns a scope limited to one tenant and, optionally, one tracker.
func Subpartner(userID string, tenantID int64, tracker string) CallerScope {
	s := CallerScope{UserID: userID, Role: RoleSubpartner, TenantID: &tenantID}
	if tracker != "" {
		s.TrackerConstraint = &tracker
	}
	return s
}

// =============================================================================
// Mandatory Predicate
// =============================================================================

// Comparison is how a mandatory predicate compares its target.
type Comparison string

const (
	ComparisonEquals Comparison = "eq"
	ComparisonIn     Comparison = "in"
)

// MandatoryPredicate is a restriction that is conjoined to every query
// issued for a caller. Value holds an int64 or string for ComparisonEquals
// and a sorted []int64 for ComparisonIn.
type MandatoryPredicate struct {
	Target     Target     `json:"target"`
	Comparison Comparison `json:"comparison"`
	Value      any        `json:"value"`
}
