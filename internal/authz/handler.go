package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vulcan-erp/vulcan-erp/internal/platform/httpx"
)

// Handler exposes the permission query engine over HTTP. The transport layer
// only translates: all semantics live in the service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers the engine's endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/permissions/search", h.search)
	r.Get("/permissions/hierarchy", h.hierarchy)
	r.Get("/permissions/pattern", h.pattern)
	r.Get("/societes/{societeID}/principals/{principalID}/conflicts", h.conflicts)
}

type searchPayload struct {
	Target      string      `json:"target" validate:"omitempty,oneof=catalog effective"`
	SocieteID   string      `json:"societeId"`
	PrincipalID int64       `json:"principalId" validate:"omitempty,min=1"`
	Must        []Condition `json:"must"`
	Should      []Condition `json:"should"`
	MustNot     []Condition `json:"mustNot"`
	SortBy      string      `json:"sortBy" validate:"omitempty,oneof=key resource action"`
	SortOrder   string      `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Limit       int         `json:"limit" validate:"omitempty,min=1"`
	Offset      int         `json:"offset" validate:"omitempty,min=0"`
	SkipCache   bool        `json:"skipCache"`
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var payload searchPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	target := SearchTarget(payload.Target)
	if target == TargetEffective && payload.PrincipalID == 0 {
		// Default to the caller when the target universe is "effective".
		if p := PrincipalFromContext(r.Context()); p != nil {
			payload.PrincipalID = p.ID
		}
	}
	societeID := payload.SocieteID
	if societeID == "" {
		societeID = ResolveSocieteID(r)
	}
	result, err := h.service.Search(r.Context(), SearchRequest{
		Target:      target,
		SocieteID:   societeID,
		PrincipalID: payload.PrincipalID,
		Query: Query{
			Must:      payload.Must,
			Should:    payload.Should,
			MustNot:   payload.MustNot,
			SortBy:    payload.SortBy,
			SortOrder: payload.SortOrder,
			Limit:     payload.Limit,
			Offset:    payload.Offset,
			SkipCache: payload.SkipCache,
		},
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
	nodes := h.service.Hierarchy(r.URL.Query().Get("root"))
	httpx.JSON(w, http.StatusOK, map[string]any{"resources": nodes, "total": len(nodes)})
}

func (h *Handler) pattern(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	op := Operator(r.URL.Query().Get("operator"))
	if op == "" {
		op = OpStartsWith
	}
	codes, err := h.service.FindByPattern(pattern, op)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]string, len(codes))
	for i, code := range codes {
		out[i] = code.String()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out, "total": len(out)})
}

func (h *Handler) conflicts(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalID must be numeric")
		return
	}
	societeID := chi.URLParam(r, "societeID")
	conflicts, err := h.service.Conflicts(r.Context(), principalID, societeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"conflicts": conflicts, "total": len(conflicts)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidCondition):
		httpx.Problem(w, http.StatusBadRequest, "Malformed Query", err.Error())
	case errors.Is(err, ErrPrincipalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no assignment for this principal and societe")
	default:
		if h.logger != nil {
			h.logger.Error("authz handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
