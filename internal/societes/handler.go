package societes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vulcan-erp/vulcan-erp/internal/authz"
	"github.com/vulcan-erp/vulcan-erp/internal/platform/httpx"
)

// Handler exposes the tenant registry over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the registry endpoints with their access rules.
func (h *Handler) MountRoutes(r chi.Router, guard authz.Middleware) {
	r.Route("/societes", func(r chi.Router) {
		r.With(guard.Require(authz.Requirement{
			GlobalRoles: []authz.GlobalRole{authz.GlobalAdmin},
		})).Post("/", h.createSociete)

		r.With(guard.Require(authz.Requirement{
			Permissions: []string{"societes:read"},
		})).Get("/", h.listSocietes)

		r.Route("/{societeID}", func(r chi.Router) {
			r.With(guard.Require(authz.Requirement{
				Permissions: []string{"societes:read"},
			})).Get("/", h.getSociete)

			r.With(guard.Require(authz.Requirement{
				Permissions: []string{"sites:write"},
			})).Post("/sites", h.createSite)

			r.With(guard.Require(authz.Requirement{
				Permissions: []string{"sites:read"},
			})).Get("/sites", h.listSites)

			r.With(guard.Require(authz.Requirement{
				Permissions: []string{"users:manage"},
			})).Put("/assignments/{principalID}", h.assignRole)

			r.With(guard.Require(authz.Requirement{
				Permissions: []string{"users:manage"},
			})).Delete("/assignments/{principalID}", h.revokeRole)
		})
	})
}

type societePayload struct {
	ID   string `json:"id" validate:"required,min=2,max=64"`
	Name string `json:"name" validate:"required,min=2,max=255"`
}

type sitePayload struct {
	ID   string `json:"id" validate:"required,min=2,max=64"`
	Name string `json:"name" validate:"required,min=2,max=255"`
}

type assignmentPayload struct {
	Role                  string     `json:"role" validate:"required,oneof=OWNER ADMIN MANAGER MEMBER"`
	IsDefaultSociete      bool       `json:"isDefaultSociete"`
	AdditionalPermissions []string   `json:"additionalPermissions"`
	RestrictedPermissions []string   `json:"restrictedPermissions"`
	ExpiresAt             *time.Time `json:"expiresAt"`
}

func (h *Handler) createSociete(w http.ResponseWriter, r *http.Request) {
	var payload societePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.CreateSociete(r.Context(), Societe{ID: payload.ID, Name: payload.Name}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": payload.ID})
}

func (h *Handler) listSocietes(w http.ResponseWriter, r *http.Request) {
	societes, err := h.service.ListSocietes(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"societes": societes, "total": len(societes)})
}

func (h *Handler) getSociete(w http.ResponseWriter, r *http.Request) {
	societe, err := h.service.GetSociete(r.Context(), chi.URLParam(r, "societeID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, societe)
}

func (h *Handler) createSite(w http.ResponseWriter, r *http.Request) {
	var payload sitePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	site := Site{ID: payload.ID, SocieteID: chi.URLParam(r, "societeID"), Name: payload.Name}
	if err := h.service.CreateSite(r.Context(), site); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": site.ID})
}

func (h *Handler) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context(), chi.URLParam(r, "societeID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sites": sites, "total": len(sites)})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalID must be numeric")
		return
	}
	var payload assignmentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	change := AssignmentChange{
		PrincipalID:           principalID,
		SocieteID:             chi.URLParam(r, "societeID"),
		Role:                  authz.TenantRole(payload.Role),
		IsDefaultSociete:      payload.IsDefaultSociete,
		AdditionalPermissions: payload.AdditionalPermissions,
		RestrictedPermissions: payload.RestrictedPermissions,
		ExpiresAt:             payload.ExpiresAt,
	}
	if err := h.service.AssignRole(r.Context(), authz.PrincipalFromContext(r.Context()), change); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalID must be numeric")
		return
	}
	societeID := chi.URLParam(r, "societeID")
	if err := h.service.RevokeRole(r.Context(), authz.PrincipalFromContext(r.Context()), principalID, societeID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, authz.ErrPrincipalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, authz.ErrInvalidRoleComparison):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("societes handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
