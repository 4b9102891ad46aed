package authz

import (
	"errors"
	"strings"
)

// PermissionCode is a two-segment permission identifier, "resource:action".
type PermissionCode struct {
	Resource string
	Action   string
}

// String renders the canonical resource:action form.
func (p PermissionCode) String() string {
	return p.Resource + ":" + p.Action
}

// ParsePermission splits a resource:action string. Both segments must be
// non-empty.
func ParsePermission(code string) (PermissionCode, error) {
	resource, action, ok := strings.Cut(code, ":")
	if !ok || resource == "" || action == "" {
		return PermissionCode{}, errors.New("authz: permission code must be resource:action")
	}
	return PermissionCode{Resource: resource, Action: action}, nil
}

// PermissionSet is a membership set keyed by the canonical code string.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from code strings.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

// Has reports membership of a code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Add inserts a code.
func (s PermissionSet) Add(code string) {
	s[code] = struct{}{}
}

// Remove deletes a code.
func (s PermissionSet) Remove(code string) {
	delete(s, code)
}

// Codes returns the members in unspecified order.
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for c := range s {
		codes = append(codes, c)
	}
	return codes
}

// Clone copies the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Catalog is the ordered, process-wide list of registered permission codes.
// It is loaded once at startup and never mutated afterwards, so concurrent
// reads need no synchronisation.
type Catalog struct {
	codes []PermissionCode
}

// NewCatalog validates and stores the given codes, preserving order and
// dropping duplicates.
func NewCatalog(codes []string) (*Catalog, error) {
	seen := make(map[string]struct{}, len(codes))
	parsed := make([]PermissionCode, 0, len(codes))
	for _, raw := range codes {
		code, err := ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		parsed = append(parsed, code)
	}
	return &Catalog{codes: parsed}, nil
}

// Codes returns the catalog entries in registration order.
func (c *Catalog) Codes() []PermissionCode {
	out := make([]PermissionCode, len(c.codes))
	copy(out, c.codes)
	return out
}

// Strings returns the canonical code strings in registration order.
func (c *Catalog) Strings() []string {
	out := make([]string, len(c.codes))
	for i, code := range c.codes {
		out[i] = code.String()
	}
	return out
}

// Len returns the number of registered codes.
func (c *Catalog) Len() int {
	return len(c.codes)
}
