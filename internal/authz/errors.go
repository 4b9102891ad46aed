package authz

import "errors"

// Sentinel errors for the authorization core. Denial errors are expected
// outcomes surfaced as Decision values; the remaining ones indicate a
// malformed request or a missing record.
var (
	// ErrUnauthenticated indicates no principal is attached to the request.
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	// ErrInsufficientRole indicates the principal's role rank is too low.
	ErrInsufficientRole = errors.New("authz: insufficient role")
	// ErrInsufficientPermission indicates a missing permission grant.
	ErrInsufficientPermission = errors.New("authz: insufficient permission")
	// ErrOwnershipViolation indicates the principal does not own the resource.
	ErrOwnershipViolation = errors.New("authz: ownership violation")

	// ErrInvalidCondition indicates operator/operand mismatch in a condition.
	ErrInvalidCondition = errors.New("authz: invalid condition")
	// ErrEmptyQuery indicates a query without any condition groups.
	ErrEmptyQuery = errors.New("authz: empty query")
	// ErrInvalidRoleComparison indicates roles from mismatched enumerations
	// or unknown role values were compared.
	ErrInvalidRoleComparison = errors.New("authz: invalid role comparison")

	// ErrPrincipalNotFound indicates the principal has no assignment for the
	// requested societe.
	ErrPrincipalNotFound = errors.New("authz: principal not found")
)
