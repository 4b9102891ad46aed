package authz

import (
	"errors"
	"testing"
)

func TestGlobalRoleOrderingIsTotal(t *testing.T) {
	roles := []GlobalRole{GlobalSuperAdmin, GlobalAdmin, GlobalManager, GlobalUser}
	for _, a := range roles {
		for _, b := range roles {
			ab, err := a.IsHigherOrEqual(b)
			if err != nil {
				t.Fatalf("compare %s %s: %v", a, b, err)
			}
			ba, err := b.IsHigherOrEqual(a)
			if err != nil {
				t.Fatalf("compare %s %s: %v", b, a, err)
			}
			if a == b {
				if !ab || !ba {
					t.Fatalf("expected reflexivity for %s", a)
				}
				continue
			}
			if ab == ba {
				t.Fatalf("expected antisymmetry for %s vs %s", a, b)
			}
		}
	}
	// Transitivity across the full chain.
	for i := 0; i < len(roles); i++ {
		for j := i; j < len(roles); j++ {
			for k := j; k < len(roles); k++ {
				ij, _ := roles[i].IsHigherOrEqual(roles[j])
				jk, _ := roles[j].IsHigherOrEqual(roles[k])
				ik, _ := roles[i].IsHigherOrEqual(roles[k])
				if ij && jk && !ik {
					t.Fatalf("transitivity broken at %s %s %s", roles[i], roles[j], roles[k])
				}
			}
		}
	}
}

func TestTenantRoleRanks(t *testing.T) {
	cases := []struct {
		a, b TenantRole
		want bool
	}{
		{TenantOwner, TenantAdmin, true},
		{TenantAdmin, TenantOwner, false},
		{TenantManager, TenantMember, true},
		{TenantMember, TenantMember, true},
	}
	for _, tc := range cases {
		got, err := tc.a.IsHigherOrEqual(tc.b)
		if err != nil {
			t.Fatalf("compare %s %s: %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("%s >= %s: expected %v got %v", tc.a, tc.b, tc.want, got)
		}
	}
}

func TestUnknownRoleComparisonFailsFast(t *testing.T) {
	if _, err := GlobalRole("INTERN").IsHigherOrEqual(GlobalUser); !errors.Is(err, ErrInvalidRoleComparison) {
		t.Fatalf("expected ErrInvalidRoleComparison, got %v", err)
	}
	if _, err := GlobalAdmin.IsHigherOrEqual(GlobalRole("OWNER")); !errors.Is(err, ErrInvalidRoleComparison) {
		t.Fatalf("expected ErrInvalidRoleComparison for tenant value in global enum, got %v", err)
	}
	if _, err := TenantRole("SUPER_ADMIN").IsHigherOrEqual(TenantMember); !errors.Is(err, ErrInvalidRoleComparison) {
		t.Fatalf("expected ErrInvalidRoleComparison for global value in tenant enum, got %v", err)
	}
}

func TestBaselineGrantsAreCopies(t *testing.T) {
	baseline := DefaultRoleBaseline()
	grants := baseline.Grants(TenantMember)
	if len(grants) == 0 {
		t.Fatalf("expected member baseline grants")
	}
	grants[0] = "tampered:write"
	if baseline.Grants(TenantMember)[0] == "tampered:write" {
		t.Fatalf("baseline table must be immutable")
	}
}
