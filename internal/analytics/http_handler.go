package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

// Handler exposes analytics as HTTP endpoints.
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Overview serves GET /analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error fetching analytics: "+err.Error())
		return
	}
	render.JSON(w, r, overview)
}

// Customers serves GET /analytics/customers?limit=N.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	insights, err := h.service.CustomerInsights(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error fetching customer insights: "+err.Error())
		return
	}
	render.JSON(w, r, insights)
}

// Products serves GET /analytics/products?limit=N.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	insights, err := h.service.ProductInsights(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error fetching product insights: "+err.Error())
		return
	}
	render.JSON(w, r, insights)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "detail", detail)
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": detail})
}
