package audit

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vulcan-erp/vulcan-erp/internal/platform/httpx"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers the timeline endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit/timeline", h.timeline)
	r.Get("/audit/export.csv", h.exportCSV)
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Timeline(r.Context(), h.parseFilters(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filters := h.parseFilters(r)
	filters.Page = 1
	filters.PageSize = maxPageSize

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="access-audit.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"occurred_at", "principal_id", "societe_id", "route", "outcome", "reason"})

	for {
		result, err := h.service.Timeline(r.Context(), filters)
		if err != nil {
			h.logger.Error("audit export", slog.Any("error", err))
			return
		}
		for _, row := range result.Rows {
			_ = writer.Write([]string{
				row.OccurredAt.UTC().Format(time.RFC3339),
				strconv.FormatInt(row.PrincipalID, 10),
				row.SocieteID,
				row.Route,
				row.Outcome,
				row.Reason,
			})
		}
		if !result.Paging.HasNext {
			break
		}
		filters.Page = result.Paging.NextPage
	}
	writer.Flush()
}

func (h *Handler) parseFilters(r *http.Request) TimelineFilters {
	query := r.URL.Query()
	filters := TimelineFilters{
		SocieteID: query.Get("societe"),
		Outcome:   query.Get("outcome"),
	}
	if v := query.Get("principal"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.PrincipalID = id
		}
	}
	if v := query.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := query.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	if v := query.Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil {
			filters.Page = page
		}
	}
	if v := query.Get("pageSize"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			filters.PageSize = size
		}
	}
	return filters
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Error("audit handler", slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
