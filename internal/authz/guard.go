package authz

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// State names one stage of the guard pipeline.
type State string

// Pipeline states. AUDITED and DENIED are terminal.
const (
	StateStart            State = "START"
	StateTenantResolved   State = "TENANT_RESOLVED"
	StateRoleAuthorized   State = "ROLE_AUTHORIZED"
	StateOwnershipChecked State = "OWNERSHIP_CHECKED"
	StateAudited          State = "AUDITED"
	StateDenied           State = "DENIED"
)

// Requirement declares what an operation demands. It is attached explicitly
// at route registration time; the guard never scans annotations.
type Requirement struct {
	// Public skips the pipeline entirely.
	Public bool
	// GlobalRoles allows principals whose global role ranks at or above any
	// listed role.
	GlobalRoles []GlobalRole
	// TenantRoles allows principals whose societe assignment ranks at or
	// above any listed role.
	TenantRoles []TenantRole
	// Permissions lists required permission codes.
	Permissions []string
	// RequireAll demands every listed permission instead of any one.
	RequireAll bool
	// DisableSuperAdminBypass forces the explicit checks even for the top
	// global rank.
	DisableSuperAdminBypass bool
	// RequireOwnership demands the target resource belongs to the principal.
	RequireOwnership bool
	// OwnerField names the request field carrying the owner identifier.
	OwnerField string
	// ManagePermission lets non-owners act when they hold this grant.
	ManagePermission string
}

// AccessRequest is the transport-independent view of one inbound request.
type AccessRequest struct {
	Principal *Principal
	SocieteID string
	Route     string
	// OwnerID is the extracted owner identifier, empty when none was found.
	OwnerID string
}

// Decision is the explicit result of a guard run: control flow as data, not
// exceptions. A denied decision carries the specific reason for the
// transport layer to translate.
type Decision struct {
	State   State
	Reason  error
	Message string
}

// Allowed reports whether the pipeline reached its terminal success state.
func (d Decision) Allowed() bool {
	return d.State == StateAudited
}

// Default user-facing messages per denial reason. Internal details such as
// other tenants' catalog contents never leak here.
func denialMessage(reason error) string {
	switch {
	case errors.Is(reason, ErrUnauthenticated):
		return "authentication required"
	case errors.Is(reason, ErrInsufficientRole):
		return "your role does not allow this operation"
	case errors.Is(reason, ErrInsufficientPermission):
		return "you do not have permission for this operation"
	case errors.Is(reason, ErrOwnershipViolation):
		return "you may only act on your own resources"
	default:
		return "access denied"
	}
}

// Guard runs the authorization pipeline: tenant resolution, role and
// permission evaluation, ownership check, audit emission. Stages execute
// strictly in order and short-circuit on first failure.
type Guard struct {
	store    Store
	baseline RoleBaseline
	sink     AuditSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewGuard constructs a Guard. The baseline table is immutable after
// startup.
func NewGuard(store Store, baseline RoleBaseline, sink AuditSink, logger *slog.Logger) *Guard {
	if sink == nil {
		sink = NopSink{}
	}
	return &Guard{store: store, baseline: baseline, sink: sink, logger: logger, now: time.Now}
}

// Check walks the pipeline for one request. Any store failure, including a
// context timeout, denies: the guard fails closed, never open.
func (g *Guard) Check(ctx context.Context, req AccessRequest, requirement Requirement) Decision {
	if requirement.Public {
		// Public operations shortcut START -> AUDITED.
		g.emit(ctx, req, StateAudited, nil)
		return Decision{State: StateAudited}
	}

	// START -> TENANT_RESOLVED
	if req.Principal == nil {
		return g.deny(ctx, req, ErrUnauthenticated)
	}
	societeID := req.SocieteID
	if societeID == "" {
		societeID = g.resolveSociete(req.Principal)
	}

	// TENANT_RESOLVED -> ROLE_AUTHORIZED
	if decision, ok := g.authorizeRole(ctx, req, requirement, societeID); !ok {
		return decision
	}

	// ROLE_AUTHORIZED -> OWNERSHIP_CHECKED
	if requirement.RequireOwnership {
		if decision, ok := g.checkOwnership(ctx, req, requirement, societeID); !ok {
			return decision
		}
	}

	// OWNERSHIP_CHECKED -> AUDITED
	g.emit(ctx, req, StateAudited, nil)
	return Decision{State: StateAudited}
}

// resolveSociete falls back to the principal's active or default societe.
func (g *Guard) resolveSociete(p *Principal) string {
	if p.ActiveSocieteID != "" {
		return p.ActiveSocieteID
	}
	for i := range p.Assignments {
		if p.Assignments[i].IsDefaultSociete && p.Assignments[i].IsActive {
			return p.Assignments[i].SocieteID
		}
	}
	return ""
}

func (g *Guard) authorizeRole(ctx context.Context, req AccessRequest, requirement Requirement, societeID string) (Decision, bool) {
	p := req.Principal

	// The top global rank bypasses explicit checks unless the requirement
	// opts out.
	if p.IsSuperAdmin() && !requirement.DisableSuperAdminBypass {
		return Decision{}, true
	}

	if len(requirement.GlobalRoles) > 0 {
		satisfied := false
		for _, role := range requirement.GlobalRoles {
			ok, err := p.GlobalRole.IsHigherOrEqual(role)
			if err != nil {
				g.warn("role comparison", err)
				return g.deny(ctx, req, ErrInsufficientRole), false
			}
			if ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return g.deny(ctx, req, ErrInsufficientRole), false
		}
	}

	var assignment *TenantRoleAssignment
	if len(requirement.TenantRoles) > 0 || len(requirement.Permissions) > 0 {
		if societeID == "" {
			return g.deny(ctx, req, ErrInsufficientPermission), false
		}
		var err error
		assignment, err = g.store.GetTenantRoleAssignment(ctx, p.ID, societeID)
		if err != nil {
			// Fail closed: timeouts and missing assignments both deny.
			if !errors.Is(err, ErrPrincipalNotFound) {
				g.warn("assignment fetch", err)
			}
			return g.deny(ctx, req, ErrInsufficientPermission), false
		}
		// A soft-expired assignment grants nothing, same as no assignment
		// at all; the sweep only deactivates the row later.
		if assignment.Expired(g.now()) {
			return g.deny(ctx, req, ErrInsufficientPermission), false
		}
	}

	if len(requirement.TenantRoles) > 0 {
		satisfied := false
		for _, role := range requirement.TenantRoles {
			ok, err := assignment.Role.IsHigherOrEqual(role)
			if err != nil {
				g.warn("role comparison", err)
				return g.deny(ctx, req, ErrInsufficientRole), false
			}
			if ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return g.deny(ctx, req, ErrInsufficientRole), false
		}
	}

	if len(requirement.Permissions) > 0 {
		effective := assignment.Resolve(g.baseline, g.now())
		op := OpHasAny
		if requirement.RequireAll {
			op = OpHasAll
		}
		ok, err := Evaluate(Condition{Operator: op, Permissions: requirement.Permissions}, EffectiveSet{Active: effective})
		if err != nil || !ok {
			if err != nil {
				g.warn("permission evaluation", err)
			}
			return g.deny(ctx, req, ErrInsufficientPermission), false
		}
	}

	return Decision{}, true
}

func (g *Guard) checkOwnership(ctx context.Context, req AccessRequest, requirement Requirement, societeID string) (Decision, bool) {
	if req.OwnerID != "" && req.OwnerID == formatPrincipalID(req.Principal.ID) {
		return Decision{}, true
	}
	// Acting on another principal requires the manage grant for this
	// societe.
	if requirement.ManagePermission != "" && societeID != "" {
		assignment, err := g.store.GetTenantRoleAssignment(ctx, req.Principal.ID, societeID)
		if err == nil {
			effective := assignment.Resolve(g.baseline, g.now())
			if effective.Has(requirement.ManagePermission) {
				return Decision{}, true
			}
		} else if !errors.Is(err, ErrPrincipalNotFound) {
			g.warn("assignment fetch", err)
		}
	}
	return g.deny(ctx, req, ErrOwnershipViolation), false
}

func (g *Guard) deny(ctx context.Context, req AccessRequest, reason error) Decision {
	g.emit(ctx, req, StateDenied, reason)
	return Decision{State: StateDenied, Reason: reason, Message: denialMessage(reason)}
}

// emit records the outcome best-effort; audit failures never change the
// decision.
func (g *Guard) emit(ctx context.Context, req AccessRequest, state State, reason error) {
	event := AuditEvent{
		SocieteID: req.SocieteID,
		Route:     req.Route,
		Outcome:   string(state),
		Timestamp: g.now().UTC(),
	}
	if req.Principal != nil {
		event.PrincipalID = req.Principal.ID
	}
	if reason != nil {
		event.Reason = reason.Error()
	}
	g.sink.Record(ctx, event)
}

func (g *Guard) warn(msg string, err error) {
	if g.logger != nil {
		g.logger.Warn(msg, slog.Any("error", err))
	}
}

// formatPrincipalID renders the principal ID the way owner identifiers
// arrive from route/body/query fields.
func formatPrincipalID(id int64) string {
	return strconv.FormatInt(id, 10)
}
