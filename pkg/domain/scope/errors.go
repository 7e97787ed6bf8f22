package scope

import (
	"errors"
	"fmt"

	"github.com/playreport/api/pkg/domain/shared"
)

// Domain errors for caller scope resolution. All of them deny access.
var (
	ErrNoAccessibleTenants     = fmt.Errorf("%w: caller has no accessible tenants", shared.ErrForbidden)
	ErrMissingTenantAssignment = fmt.Errorf("%w: caller has no tenant assignment", shared.ErrForbidden)
	ErrUnknownRole             = fmt.Errorf("%w: unknown caller role", shared.ErrForbidden)
	ErrScopeNotSupported       = fmt.Errorf("%w: report cannot be restricted to the caller scope", shared.ErrForbidden)
)

// IsNoAccessibleTenants checks if the error is a no accessible tenants error.
func IsNoAccessibleTenants(err error) bool {
	return errors.Is(err, ErrNoAccessibleTenants)
}

// IsMissingTenantAssignment checks if the error is a missing tenant assignment error.
func IsMissingTenantAssignment(err error) bool {
	return errors.Is(err, ErrMissingTenantAssignment)
}
