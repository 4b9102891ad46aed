package authz

import (
	"fmt"
	"strings"
)

// Operator identifies the boolean test a condition performs.
type Operator string

// Supported condition operators.
const (
	OpHas        Operator = "HAS"
	OpHasAll     Operator = "HAS_ALL"
	OpHasAny     Operator = "HAS_ANY"
	OpHasNone    Operator = "HAS_NONE"
	OpMatches    Operator = "MATCHES"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
	OpContains   Operator = "CONTAINS"
)

func (op Operator) valid() bool {
	switch op {
	case OpHas, OpHasAll, OpHasAny, OpHasNone, OpMatches, OpStartsWith, OpEndsWith, OpContains:
		return true
	}
	return false
}

// requiresPattern reports whether the operator needs a pattern operand.
func (op Operator) requiresPattern() bool {
	switch op {
	case OpMatches, OpStartsWith, OpEndsWith, OpContains:
		return true
	}
	return false
}

// Condition is one boolean test unit within a permission query. It is a
// stateless value object constructed per query.
type Condition struct {
	Operator    Operator `json:"operator"`
	Permissions []string `json:"permissions,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	SocieteID   string   `json:"societeId,omitempty"`
	SiteID      string   `json:"siteId,omitempty"`
}

// Validate checks operator/operand consistency before any evaluation or
// persistence access happens.
func (c Condition) Validate() error {
	if !c.Operator.valid() {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
	}
	if c.Operator.requiresPattern() {
		if c.Pattern == "" {
			return fmt.Errorf("%w: operator %s requires a pattern", ErrInvalidCondition, c.Operator)
		}
		return nil
	}
	if len(c.Permissions) == 0 {
		return fmt.Errorf("%w: operator %s requires a permission list", ErrInvalidCondition, c.Operator)
	}
	return nil
}

// scopedSet narrows the effective set by the condition's qualifiers. A
// qualifier pointing at an unknown societe or site yields an empty set, which
// evaluates fail-closed for positive operators.
func (c Condition) scopedSet(eff EffectiveSet) PermissionSet {
	if c.SiteID != "" {
		return eff.BySite[c.SiteID]
	}
	if c.SocieteID != "" {
		return eff.BySociete[c.SocieteID]
	}
	return eff.Active
}

// Evaluate runs the condition against the principal's effective permissions.
// It is a pure function: fetching the sets from persistence is the caller's
// job.
func Evaluate(c Condition, eff EffectiveSet) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	set := c.scopedSet(eff)
	switch c.Operator {
	case OpHas, OpHasAll:
		for _, code := range c.Permissions {
			if !set.Has(code) {
				return false, nil
			}
		}
		return true, nil
	case OpHasAny:
		for _, code := range c.Permissions {
			if set.Has(code) {
				return true, nil
			}
		}
		return false, nil
	case OpHasNone:
		for _, code := range c.Permissions {
			if set.Has(code) {
				return false, nil
			}
		}
		return true, nil
	default:
		for code := range set {
			if matchPattern(code, c.Pattern, c.Operator) {
				return true, nil
			}
		}
		return false, nil
	}
}

// matchPattern applies the string relationship for pattern operators against
// a full resource:action code. MATCHES compares the pattern for exact
// equality with the full code or either of its segments; the remaining
// operators test the full code string. All comparisons are case-sensitive.
func matchPattern(code, pattern string, op Operator) bool {
	switch op {
	case OpMatches:
		if code == pattern {
			return true
		}
		resource, action, ok := strings.Cut(code, ":")
		return ok && (resource == pattern || action == pattern)
	case OpStartsWith:
		return strings.HasPrefix(code, pattern)
	case OpEndsWith:
		return strings.HasSuffix(code, pattern)
	case OpContains:
		return strings.Contains(code, pattern)
	}
	return false
}
