package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"estimate-api/internal/export"
	"estimate-api/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ExportHandler serves CSV exports of stored quotes.
type ExportHandler struct {
	exporter *export.Exporter
	logger   zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exporter *export.Exporter, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		logger:   logger.With().Str("handler", "export").Logger(),
	}
}

// SnapshotResponse names a stored export.
type SnapshotResponse struct {
	Key  string `json:"key"`
	Rows int    `json:"rows"`
}

// trackingWriter records whether any bytes reached the client.
type trackingWriter struct {
	w       http.ResponseWriter
	started bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	if !t.started {
		t.started = true
		t.w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		t.w.Header().Set("Content-Disposition", `attachment; filename="quotes.csv"`)
		t.w.WriteHeader(http.StatusOK)
	}
	return t.w.Write(p)
}

// Stream handles GET /api/quotes/export.csv requests.
func (h *ExportHandler) Stream(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	tw := &trackingWriter{w: w}
	rows, err := h.exporter.WriteCSV(r.Context(), tw, filter)
	if err != nil {
		if !tw.started {
			writeDomainError(w, r, err, h.logger)
			return
		}
		h.logger.Error().Err(err).Int("rows", rows).Msg("csv export aborted mid-stream")
		return
	}

	h.logger.Debug().Int("rows", rows).Msg("csv export streamed")
}

// Snapshot handles POST /api/quotes/exports requests.
func (h *ExportHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	key, rows, err := h.exporter.Snapshot(r.Context(), filter)
	if err != nil {
		var domainErr *model.DomainError
		if errors.As(err, &domainErr) {
			writeDomainError(w, r, err, h.logger)
			return
		}
		h.logger.Error().Err(err).Msg("failed to store export")
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodePersistenceFailure, "export archive unavailable, retry later", "")
		return
	}

	w.Header().Set("Location", "/api/quotes/exports/"+key)
	writeJSON(w, http.StatusCreated, SnapshotResponse{Key: key, Rows: rows})
}

// Download handles GET /api/quotes/exports/{key} requests.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, err := h.exporter.Open(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrInvalidKey):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid export key", "key")
		case errors.Is(err, export.ErrArchiveNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "export not found", "")
		default:
			h.logger.Error().Err(err).Str("key", key).Msg("failed to open export")
			writeError(w, r, http.StatusServiceUnavailable, model.ErrCodePersistenceFailure, "export archive unavailable, retry later", "")
		}
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.TrimSuffix(key, ".gz")+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("export download interrupted")
	}
}
