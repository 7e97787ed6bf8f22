package scope

import (
	"fmt"
	"slices"
	"strings"
)

// Resolver turns a caller scope into the predicates every query for that
// caller must carry. It is the only place role branching happens.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the mandatory predicates for identity. Admins get none.
// Any identity that cannot be narrowed fails closed with an error.
func (r *Resolver) Resolve(identity CallerScope) ([]MandatoryPredicate, error) {
	switch identity.Role {
	case RoleAdmin:
		return []MandatoryPredicate{}, nil

	case RolePartner:
		tenants := normalizeTenants(identity.TenantIDs)
		if len(tenants) == 0 {
			return nil, ErrNoAccessibleTenants
		}
		return []MandatoryPredicate{{
			Target:     TargetTenant,
			Comparison: ComparisonIn,
			Value:      tenants,
		}}, nil

	case RoleSubpartner:
		if identity.TenantID == nil {
			return nil, ErrMissingTenantAssignment
		}
		preds := []MandatoryPredicate{{
			Target:     TargetTenant,
			Comparison: ComparisonEquals,
			Value:      *identity.TenantID,
		}}
		if identity.TrackerConstraint != nil {
			if tracker := strings.TrimSpace(*identity.TrackerConstraint); tracker != "" {
				preds = append(preds, MandatoryPredicate{
					Target:     TargetTracker,
					Comparison: ComparisonEquals,
					Value:      tracker,
				})
			}
		}
		return preds, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, identity.Role)
}

// normalizeTenants returns a sorted, de-duplicated copy so equal tenant sets
// always resolve to identical predicates.
func normalizeTenants(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
