package authz

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/vulcan-erp/vulcan-erp/internal/platform/httpx"
)

// DecisionRecorder lets the metrics layer count outcomes without the guard
// depending on it.
type DecisionRecorder func(route, outcome string)

// Middleware adapts the guard pipeline to chi handlers.
type Middleware struct {
	Guard    *Guard
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Require wraps a handler with the given requirement. Denial reasons map to
// transport status codes here; the guard itself stays transport-agnostic.
func (m Middleware) Require(requirement Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := AccessRequest{
				Principal: PrincipalFromContext(r.Context()),
				SocieteID: ResolveSocieteID(r),
				Route:     r.Method + " " + r.URL.Path,
				OwnerID:   ExtractOwnerID(r, requirement.OwnerField),
			}
			decision := m.Guard.Check(r.Context(), req, requirement)
			if m.Recorder != nil {
				m.Recorder(routePattern(r), string(decision.State))
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			m.respondDenied(w, decision)
		})
	}
}

func (m Middleware) respondDenied(w http.ResponseWriter, decision Decision) {
	switch {
	case errors.Is(decision.Reason, ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", decision.Message)
	case errors.Is(decision.Reason, ErrInsufficientRole),
		errors.Is(decision.Reason, ErrInsufficientPermission),
		errors.Is(decision.Reason, ErrOwnershipViolation):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Message)
	default:
		httpx.Problem(w, http.StatusForbidden, "Forbidden", denialMessage(nil))
	}
}

// ResolveSocieteID reads the tenant context from the request: route param
// first, then header, then query.
func ResolveSocieteID(r *http.Request) string {
	if id := chi.URLParam(r, "societeID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Societe-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("societe")
}

// ExtractOwnerID pulls the owner identifier from the request, checking route
// param, then body field, then query param, in that priority order.
func ExtractOwnerID(r *http.Request, field string) string {
	if field == "" {
		return ""
	}
	if id := chi.URLParam(r, field); id != "" {
		return id
	}
	if id := ownerFromBody(r, field); id != "" {
		return id
	}
	return r.URL.Query().Get(field)
}

// ownerPeekLimit bounds how much of a JSON body is buffered for the owner
// field lookup.
const ownerPeekLimit = 1 << 20

// ownerFromBody reads the owner field from a JSON body, buffering and
// restoring it so the handler can still decode the request. Form-encoded
// bodies go through PostFormValue.
func ownerFromBody(r *http.Request, field string) string {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return r.PostFormValue(field)
	}
	if r.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, ownerPeekLimit))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))
	if err != nil {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(buf, &fields); err != nil {
		return ""
	}
	raw, ok := fields[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
