package authz

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var resourceTitler = cases.Title(language.English)

// ResourceNode groups catalog entries under one resource segment. Used for
// admin-facing navigation, not for authorization decisions.
type ResourceNode struct {
	Resource string   `json:"resource"`
	Label    string   `json:"label"`
	Actions  []string `json:"actions"`
	Count    int      `json:"count"`
}

// Conflict is a detected grant/denial pair for the same permission code on
// one principal within one societe. Computed on demand, never persisted.
type Conflict struct {
	Code           PermissionCode `json:"code"`
	GrantingSource string         `json:"grantingSource"`
	DenyingSource  string         `json:"denyingSource"`
}

// BuildHierarchy groups the catalog by resource segment, optionally filtered
// to resources starting with rootPrefix. Nodes are sorted by resource name;
// actions keep catalog registration order.
func BuildHierarchy(catalog *Catalog, rootPrefix string) []ResourceNode {
	byResource := make(map[string]*ResourceNode)
	var order []string
	for _, code := range catalog.Codes() {
		if rootPrefix != "" && !hasPrefix(code.Resource, rootPrefix) {
			continue
		}
		node, ok := byResource[code.Resource]
		if !ok {
			node = &ResourceNode{
				Resource: code.Resource,
				Label:    resourceTitler.String(code.Resource),
			}
			byResource[code.Resource] = node
			order = append(order, code.Resource)
		}
		node.Actions = append(node.Actions, code.Action)
		node.Count++
	}
	sort.Strings(order)
	nodes := make([]ResourceNode, 0, len(order))
	for _, resource := range order {
		nodes = append(nodes, *byResource[resource])
	}
	return nodes
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// FindByPattern scans the catalog testing each code against the operator,
// preserving catalog order. An empty result is not an error.
func FindByPattern(catalog *Catalog, pattern string, op Operator) ([]PermissionCode, error) {
	switch op {
	case OpMatches, OpStartsWith, OpEndsWith, OpContains:
	default:
		return nil, fmt.Errorf("%w: operator %s is not a pattern operator", ErrInvalidCondition, op)
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: operator %s requires a pattern", ErrInvalidCondition, op)
	}
	var out []PermissionCode
	for _, code := range catalog.Codes() {
		if matchPattern(code.String(), pattern, op) {
			out = append(out, code)
		}
	}
	return out, nil
}

// DetectConflicts reports every permission code the assignment both grants
// (role baseline or additional grant) and denies (explicit restriction).
// Results are grouped by resource then action, ascending.
func DetectConflicts(assignment *TenantRoleAssignment, baseline RoleBaseline) []Conflict {
	if assignment == nil {
		return nil
	}
	restricted := NewPermissionSet(assignment.RestrictedPermissions...)
	if len(restricted) == 0 {
		return nil
	}
	granted := make(map[string]string)
	for _, code := range baseline.Grants(assignment.Role) {
		granted[code] = fmt.Sprintf("role:%s baseline", assignment.Role)
	}
	for _, code := range assignment.AdditionalPermissions {
		granted[code] = "additional grant"
	}

	var conflicts []Conflict
	for code := range restricted {
		source, ok := granted[code]
		if !ok {
			continue
		}
		parsed, err := ParsePermission(code)
		if err != nil {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Code:          parsed,
			GrantingSource: source,
			DenyingSource:  "explicit restriction",
		})
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Code.Resource != conflicts[j].Code.Resource {
			return conflicts[i].Code.Resource < conflicts[j].Code.Resource
		}
		return conflicts[i].Code.Action < conflicts[j].Code.Action
	})
	return conflicts
}
