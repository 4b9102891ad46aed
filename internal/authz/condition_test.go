package authz

import (
	"errors"
	"testing"
	"time"
)

func effWith(codes ...string) EffectiveSet {
	return EffectiveSet{Active: NewPermissionSet(codes...)}
}

func TestEvaluateMembershipOperators(t *testing.T) {
	eff := effWith("inventory:read", "inventory:write", "sales:read")

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"has single present", Condition{Operator: OpHas, Permissions: []string{"inventory:write"}}, true},
		{"has single absent", Condition{Operator: OpHas, Permissions: []string{"payments:write"}}, false},
		{"has_all present", Condition{Operator: OpHasAll, Permissions: []string{"inventory:read", "sales:read"}}, true},
		{"has_all partial", Condition{Operator: OpHasAll, Permissions: []string{"inventory:read", "payments:write"}}, false},
		{"has_any one present", Condition{Operator: OpHasAny, Permissions: []string{"payments:write", "sales:read"}}, true},
		{"has_any none present", Condition{Operator: OpHasAny, Permissions: []string{"payments:write", "tasks:read"}}, false},
		{"has_none all absent", Condition{Operator: OpHasNone, Permissions: []string{"payments:write", "tasks:read"}}, true},
		{"has_none one present", Condition{Operator: OpHasNone, Permissions: []string{"payments:write", "sales:read"}}, false},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.cond, eff)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestEvaluatePatternOperators(t *testing.T) {
	eff := effWith("inventory:read", "transfers:write")

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"matches resource segment", Condition{Operator: OpMatches, Pattern: "inventory"}, true},
		{"matches action segment", Condition{Operator: OpMatches, Pattern: "write"}, true},
		{"matches full code", Condition{Operator: OpMatches, Pattern: "inventory:read"}, true},
		{"matches nothing", Condition{Operator: OpMatches, Pattern: "invent"}, false},
		{"matches is case sensitive", Condition{Operator: OpMatches, Pattern: "Inventory"}, false},
		{"starts_with", Condition{Operator: OpStartsWith, Pattern: "transfers:"}, true},
		{"ends_with", Condition{Operator: OpEndsWith, Pattern: ":read"}, true},
		{"contains", Condition{Operator: OpContains, Pattern: "ventory"}, true},
		{"contains absent", Condition{Operator: OpContains, Pattern: "payment"}, false},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.cond, eff)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestEvaluateScopeQualifiers(t *testing.T) {
	eff := EffectiveSet{
		Active: NewPermissionSet("sales:read"),
		BySociete: map[string]PermissionSet{
			"acier-nord": NewPermissionSet("inventory:write"),
		},
		BySite: map[string]PermissionSet{
			"fonderie-1": NewPermissionSet("transfers:write"),
		},
	}

	got, err := Evaluate(Condition{Operator: OpHas, Permissions: []string{"inventory:write"}, SocieteID: "acier-nord"}, eff)
	if err != nil || !got {
		t.Fatalf("expected societe-scoped grant, got %v err=%v", got, err)
	}
	got, err = Evaluate(Condition{Operator: OpHas, Permissions: []string{"inventory:write"}}, eff)
	if err != nil || got {
		t.Fatalf("unscoped evaluation must use the active set, got %v err=%v", got, err)
	}
	got, err = Evaluate(Condition{Operator: OpHas, Permissions: []string{"transfers:write"}, SiteID: "fonderie-1"}, eff)
	if err != nil || !got {
		t.Fatalf("expected site-scoped grant, got %v err=%v", got, err)
	}
	// Unknown societe narrows to an empty set: fail closed.
	got, err = Evaluate(Condition{Operator: OpHas, Permissions: []string{"inventory:write"}, SocieteID: "ghost"}, eff)
	if err != nil || got {
		t.Fatalf("unknown societe must evaluate false, got %v err=%v", got, err)
	}
}

func TestEvaluateInvalidConditions(t *testing.T) {
	eff := effWith("inventory:read")
	invalid := []Condition{
		{Operator: OpHas},
		{Operator: OpMatches},
		{Operator: Operator("BETWEEN"), Permissions: []string{"a:b"}},
	}
	for _, cond := range invalid {
		if _, err := Evaluate(cond, eff); !errors.Is(err, ErrInvalidCondition) {
			t.Fatalf("expected ErrInvalidCondition for %+v, got %v", cond, err)
		}
	}
}

func TestHasAllImpliesHasAnyAndHasNoneNegatesHasAny(t *testing.T) {
	eff := effWith("inventory:read", "inventory:write", "sales:read")
	lists := [][]string{
		{"inventory:read"},
		{"inventory:read", "sales:read"},
		{"payments:write"},
		{"inventory:read", "payments:write"},
	}
	for _, list := range lists {
		all, _ := Evaluate(Condition{Operator: OpHasAll, Permissions: list}, eff)
		any, _ := Evaluate(Condition{Operator: OpHasAny, Permissions: list}, eff)
		none, _ := Evaluate(Condition{Operator: OpHasNone, Permissions: list}, eff)
		if all && !any {
			t.Fatalf("HAS_ALL must imply HAS_ANY for %v", list)
		}
		if none == any {
			t.Fatalf("HAS_NONE must negate HAS_ANY for %v", list)
		}
	}
}

func TestAssignmentResolveRestrictionsWin(t *testing.T) {
	baseline := DefaultRoleBaseline()
	assignment := &TenantRoleAssignment{
		PrincipalID:           7,
		SocieteID:             "acier-nord",
		Role:                  TenantManager,
		IsActive:              true,
		AdditionalPermissions: []string{"payments:write", "inventory:write"},
		RestrictedPermissions: []string{"inventory:write"},
	}
	set := assignment.Resolve(baseline, time.Now())
	if !set.Has("payments:write") {
		t.Fatalf("expected additional grant to apply")
	}
	if set.Has("inventory:write") {
		t.Fatalf("restriction must win over baseline and additional grants")
	}
}

func TestAssignmentResolveInactiveOrExpired(t *testing.T) {
	baseline := DefaultRoleBaseline()
	now := time.Now()
	past := now.Add(-time.Hour)

	inactive := &TenantRoleAssignment{Role: TenantOwner, IsActive: false}
	if len(inactive.Resolve(baseline, now)) != 0 {
		t.Fatalf("inactive assignment must resolve empty")
	}
	expired := &TenantRoleAssignment{Role: TenantOwner, IsActive: true, ExpiresAt: &past}
	if len(expired.Resolve(baseline, now)) != 0 {
		t.Fatalf("expired assignment must resolve empty")
	}
}
