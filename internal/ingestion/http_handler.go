package ingestion

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

const (
	UnsupportedFormatMessage = "Only CSV files are supported"
	ClearedMessage           = "All data cleared successfully"

	defaultMaxUploadBytes = 32 << 20
)

// Handler exposes ingestion over HTTP.
type Handler struct {
	service        *Service
	maxUploadBytes int64
}

// NewHTTPHandler wraps the service. maxUploadBytes <= 0 uses 32 MiB.
func NewHTTPHandler(service *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

// ServeHTTP handles the multipart upload endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("file required: %v", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	outcome, err := h.service.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			writeError(w, r, http.StatusBadRequest, UnsupportedFormatMessage)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, outcome)
}

// ListLogs returns the most recent outcome records.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.RecentLogs(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error fetching logs: "+err.Error())
		return
	}
	render.JSON(w, r, logs)
}

// Clear deletes all records and logs.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Error clearing data: "+err.Error())
		return
	}
	render.JSON(w, r, map[string]string{"message": ClearedMessage})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "detail", detail)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Detail: detail})
}
