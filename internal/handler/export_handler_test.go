package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"estimate-api/internal/export"
	"estimate-api/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newExportHandler(t *testing.T, svc *MockQuoteService) *ExportHandler {
	t.Helper()
	archive, err := export.NewFileArchive(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return NewExportHandler(export.NewExporter(svc, archive, zerolog.Nop()), zerolog.Nop())
}

func TestExportHandler_Stream(t *testing.T) {
	t.Run("Streams matching quotes", func(t *testing.T) {
		svc := new(MockQuoteService)
		page := model.NewPageResult([]model.PersistedQuote{*sampleQuote()}, 0, 100, 1)
		svc.On("Search", mock.Anything, mock.MatchedBy(func(f model.SearchFilter) bool { return f.Text == "cake" }), 0, 100).
			Return(page, nil)
		h := newExportHandler(t, svc)

		req := httptest.NewRequest(http.MethodGet, "/api/quotes/export.csv?q=cake", nil)
		w := serve(http.MethodGet, "/api/quotes/export.csv", h.Stream, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "id,idempotency_key,"))
		assert.Contains(t, lines[1], "Strawberry Cream Cake")
	})

	t.Run("Validation failure before streaming", func(t *testing.T) {
		svc := new(MockQuoteService)
		svc.On("Search", mock.Anything, mock.Anything, 0, 100).
			Return(model.PageResult[model.PersistedQuote]{}, model.NewValidationError("from", "from must not be after to"))
		h := newExportHandler(t, svc)

		req := httptest.NewRequest(http.MethodGet, "/api/quotes/export.csv?from=2025-03-02&to=2025-03-01", nil)
		w := serve(http.MethodGet, "/api/quotes/export.csv", h.Stream, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "from", decodeError(t, w).Field)
	})

	t.Run("Bad query", func(t *testing.T) {
		h := newExportHandler(t, new(MockQuoteService))

		req := httptest.NewRequest(http.MethodGet, "/api/quotes/export.csv?minTotal=x", nil)
		w := serve(http.MethodGet, "/api/quotes/export.csv", h.Stream, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportHandler_SnapshotAndDownload(t *testing.T) {
	svc := new(MockQuoteService)
	page := model.NewPageResult([]model.PersistedQuote{*sampleQuote()}, 0, 100, 1)
	svc.On("Search", mock.Anything, mock.Anything, 0, 100).Return(page, nil)
	h := newExportHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/quotes/exports", nil)
	w := serve(http.MethodPost, "/api/quotes/exports", h.Snapshot, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var snap SnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Rows)
	assert.Equal(t, "/api/quotes/exports/"+snap.Key, w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/api/quotes/exports/"+snap.Key, nil)
	w = serve(http.MethodGet, "/api/quotes/exports/{key}", h.Download, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Strawberry Cream Cake")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv\"")
}

func TestExportHandler_Download(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		expectedStatus int
	}{
		{name: "Missing export", key: "quotes-missing.csv.gz", expectedStatus: http.StatusNotFound},
		{name: "Invalid key", key: ".hidden", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newExportHandler(t, new(MockQuoteService))

			req := httptest.NewRequest(http.MethodGet, "/api/quotes/exports/"+tt.key, nil)
			w := serve(http.MethodGet, "/api/quotes/exports/{key}", h.Download, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{model.ErrCodeValidation, http.StatusBadRequest},
		{model.ErrCodeInvalidJSON, http.StatusBadRequest},
		{model.ErrCodeNotFound, http.StatusNotFound},
		{model.ErrCodeMismatch, http.StatusUnprocessableEntity},
		{model.ErrCodeConflict, http.StatusConflict},
		{model.ErrCodePersistenceFailure, http.StatusServiceUnavailable},
		{model.ErrCodeUnauthorised, http.StatusUnauthorized},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.code))
		})
	}
}
