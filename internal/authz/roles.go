package authz

// GlobalRole is a platform-wide role held by exactly one user account.
type GlobalRole string

// TenantRole is a role scoped to a single societe assignment.
type TenantRole string

// Global roles, highest rank first.
const (
	GlobalSuperAdmin GlobalRole = "SUPER_ADMIN"
	GlobalAdmin      GlobalRole = "ADMIN"
	GlobalManager    GlobalRole = "MANAGER"
	GlobalUser       GlobalRole = "USER"
)

// Tenant roles, highest rank first.
const (
	TenantOwner   TenantRole = "OWNER"
	TenantAdmin   TenantRole = "ADMIN"
	TenantManager TenantRole = "MANAGER"
	TenantMember  TenantRole = "MEMBER"
)

// Ranks are fixed at compile time. Higher value outranks lower.
var globalRoleRanks = map[GlobalRole]int{
	GlobalSuperAdmin: 4,
	GlobalAdmin:      3,
	GlobalManager:    2,
	GlobalUser:       1,
}

var tenantRoleRanks = map[TenantRole]int{
	TenantOwner:   4,
	TenantAdmin:   3,
	TenantManager: 2,
	TenantMember:  1,
}

// Valid reports whether the role is a known enumeration value.
func (r GlobalRole) Valid() bool {
	_, ok := globalRoleRanks[r]
	return ok
}

// Valid reports whether the role is a known enumeration value.
func (r TenantRole) Valid() bool {
	_, ok := tenantRoleRanks[r]
	return ok
}

// IsHigherOrEqual reports whether r outranks or equals other. Unknown role
// values are a programming error and fail with ErrInvalidRoleComparison
// rather than silently returning false.
func (r GlobalRole) IsHigherOrEqual(other GlobalRole) (bool, error) {
	ra, ok := globalRoleRanks[r]
	if !ok {
		return false, ErrInvalidRoleComparison
	}
	rb, ok := globalRoleRanks[other]
	if !ok {
		return false, ErrInvalidRoleComparison
	}
	return ra >= rb, nil
}

// IsHigherOrEqual reports whether r outranks or equals other.
func (r TenantRole) IsHigherOrEqual(other TenantRole) (bool, error) {
	ra, ok := tenantRoleRanks[r]
	if !ok {
		return false, ErrInvalidRoleComparison
	}
	rb, ok := tenantRoleRanks[other]
	if !ok {
		return false, ErrInvalidRoleComparison
	}
	return ra >= rb, nil
}

// BaselineGrants returns the permission codes granted by a tenant role before
// additional grants and restrictions are applied. The tables are immutable
// after process startup.
type RoleBaseline map[TenantRole][]string

// DefaultRoleBaseline mirrors the production grant matrix for the steel ERP.
func DefaultRoleBaseline() RoleBaseline {
	return RoleBaseline{
		TenantOwner: {
			"societes:read", "societes:write", "sites:read", "sites:write",
			"users:read", "users:write", "users:manage",
			"roles:read", "roles:write",
			"permissions:read", "audit:read",
			"inventory:read", "inventory:write",
			"payments:read", "payments:write",
			"transfers:read", "transfers:write",
			"tasks:read", "tasks:write",
		},
		TenantAdmin: {
			"societes:read", "sites:read", "sites:write",
			"users:read", "users:write", "users:manage",
			"roles:read",
			"permissions:read", "audit:read",
			"inventory:read", "inventory:write",
			"payments:read", "payments:write",
			"transfers:read", "transfers:write",
			"tasks:read", "tasks:write",
		},
		TenantManager: {
			"societes:read", "sites:read", "users:read",
			"inventory:read", "inventory:write",
			"payments:read",
			"transfers:read", "transfers:write",
			"tasks:read", "tasks:write",
		},
		TenantMember: {
			"societes:read", "sites:read",
			"inventory:read", "transfers:read", "tasks:read",
		},
	}
}

// Grants returns the baseline permission codes for the given role.
func (b RoleBaseline) Grants(role TenantRole) []string {
	grants := b[role]
	out := make([]string, len(grants))
	copy(out, grants)
	return out
}
