package export

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

// ServeHTTP streams stored records as ?format=csv|xlsx.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"detail": err.Error()})
		return
	}

	// Buffered: failures must be reported before any header is written.
	var buf bytes.Buffer
	result, err := h.service.Export(r.Context(), format, r.URL.Query().Get("name"), &buf)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		slog.ErrorContext(r.Context(), "export failed", "format", format, "error", err)
		render.Status(r, status)
		render.JSON(w, r, map[string]string{"detail": "Error exporting data: " + err.Error()})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(result.Bytes, 10))
	w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
