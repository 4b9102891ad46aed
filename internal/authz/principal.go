package authz

import "time"

// Principal is the immutable per-request snapshot of an authenticated user.
type Principal struct {
	ID              int64
	Email           string
	GlobalRole      GlobalRole
	ActiveSocieteID string
	Assignments     []TenantRoleAssignment
}

// IsSuperAdmin reports whether the principal holds the top global rank.
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.GlobalRole == GlobalSuperAdmin
}

// AssignmentFor returns the active assignment for a societe, if any.
func (p *Principal) AssignmentFor(societeID string) *TenantRoleAssignment {
	if p == nil {
		return nil
	}
	for i := range p.Assignments {
		a := &p.Assignments[i]
		if a.SocieteID == societeID && a.IsActive {
			return a
		}
	}
	return nil
}

// TenantRoleAssignment links a principal to a societe with a role and
// per-assignment grant adjustments. At most one active assignment exists per
// (principal, societe) pair. Restrictions always win over grants.
type TenantRoleAssignment struct {
	PrincipalID           int64
	SocieteID             string
	Role                  TenantRole
	IsActive              bool
	IsDefaultSociete      bool
	AdditionalPermissions []string
	RestrictedPermissions []string
	ExpiresAt             *time.Time
}

// Expired reports whether the assignment has soft-expired at the given time.
func (a *TenantRoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// Resolve computes the effective permission set for the assignment: the role
// baseline plus additional grants minus restricted permissions. Inactive or
// expired assignments resolve to an empty set.
func (a *TenantRoleAssignment) Resolve(baseline RoleBaseline, now time.Time) PermissionSet {
	if a == nil || !a.IsActive || a.Expired(now) {
		return PermissionSet{}
	}
	set := NewPermissionSet(baseline.Grants(a.Role)...)
	for _, code := range a.AdditionalPermissions {
		set.Add(code)
	}
	for _, code := range a.RestrictedPermissions {
		set.Remove(code)
	}
	return set
}

// EffectiveSet holds the resolved permission sets a condition can be scoped
// against. Active is the set for the principal's current societe context (or
// global grants when no societe is active); BySociete and BySite narrow by
// qualifier.
type EffectiveSet struct {
	Active    PermissionSet
	BySociete map[string]PermissionSet
	BySite    map[string]PermissionSet
}

// ResolveEffective builds the full EffectiveSet for a principal from its
// assignments.
func ResolveEffective(p *Principal, baseline RoleBaseline, now time.Time) EffectiveSet {
	eff := EffectiveSet{
		Active:    PermissionSet{},
		BySociete: make(map[string]PermissionSet),
	}
	if p == nil {
		return eff
	}
	for i := range p.Assignments {
		a := &p.Assignments[i]
		set := a.Resolve(baseline, now)
		if len(set) == 0 {
			continue
		}
		eff.BySociete[a.SocieteID] = set
		if a.SocieteID == p.ActiveSocieteID || (p.ActiveSocieteID == "" && a.IsDefaultSociete) {
			eff.Active = set.Clone()
		}
	}
	return eff
}
