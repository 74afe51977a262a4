package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"estimate-api/internal/middleware"
	"estimate-api/internal/model"
	"estimate-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdempotencyKeyHeader names the client supplied submission key.
const IdempotencyKeyHeader = "Idempotency-Key"

// QuoteHandler handles quote-related HTTP requests.
type QuoteHandler struct {
	service service.QuoteService
	logger  zerolog.Logger
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service service.QuoteService, logger zerolog.Logger) *QuoteHandler {
	return &QuoteHandler{
		service: service,
		logger:  logger.With().Str("handler", "quote").Logger(),
	}
}

// Preview handles POST /api/quotes/preview requests.
func (h *QuoteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	breakdown, err := h.service.Preview(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

// Submit handles POST /api/quotes requests. Retries with the same
// Idempotency-Key receive the same 201 response.
func (h *QuoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(IdempotencyKeyHeader)

	// Field checks run in the service after the key lookup, since a completed
	// key answers with its stored quote whatever the body holds.
	var req model.QuoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	quote, err := h.service.Submit(r.Context(), req, key)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	h.logger.Debug().
		Str("quote_id", quote.ID.String()).
		Str("operator", middleware.OperatorFromContext(r.Context())).
		Msg("submission answered")

	w.Header().Set("Location", "/api/quotes/"+quote.ID.String())
	writeJSON(w, http.StatusCreated, quote)
}

// GetByID handles GET /api/quotes/{id} requests.
func (h *QuoteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid quote ID format", "id")
		return
	}

	quote, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// KeyStateResponse reports the lifecycle state of an idempotency key.
type KeyStateResponse struct {
	Key   string `json:"key"`
	State string `json:"state"`
}

// KeyState handles GET /api/quotes/keys/{key} requests.
func (h *QuoteHandler) KeyState(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid idempotency key", "key")
		return
	}

	state, err := h.service.KeyState(r.Context(), key)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, KeyStateResponse{Key: key, State: state.String()})
}

// Search handles GET /api/quotes/search requests.
func (h *QuoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	page, size, err := parsePaging(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), filter, page, size)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseFilter reads q, minTotal, maxTotal, from, to and hasOptions. Dates are
// either YYYY-MM-DD, where to covers the whole day, or RFC3339.
func parseFilter(query url.Values) (model.SearchFilter, error) {
	filter := model.SearchFilter{Text: strings.TrimSpace(query.Get("q"))}

	var err error
	if filter.MinTotal, err = parseOptionalInt64(query, "minTotal"); err != nil {
		return filter, err
	}
	if filter.MaxTotal, err = parseOptionalInt64(query, "maxTotal"); err != nil {
		return filter, err
	}
	if filter.CreatedFrom, err = parseOptionalTime(query, "from", false); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseOptionalTime(query, "to", true); err != nil {
		return filter, err
	}

	if raw := query.Get("hasOptions"); raw != "" {
		filter.HasOptions, err = strconv.ParseBool(raw)
		if err != nil {
			return filter, model.NewValidationError("hasOptions", "must be true or false")
		}
	}

	return filter, nil
}

func parsePaging(query url.Values) (int, int, error) {
	page, size := 0, 0
	var err error
	if raw := query.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return 0, 0, model.NewValidationError("page", "must be an integer")
		}
	}
	if raw := query.Get("size"); raw != "" {
		if size, err = strconv.Atoi(raw); err != nil {
			return 0, 0, model.NewValidationError("size", "must be an integer")
		}
	}
	return page, size, nil
}

func parseOptionalInt64(query url.Values, name string) (*int64, error) {
	raw := query.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, model.NewValidationError(name, "must be an integer amount")
	}
	return &v, nil
}

func parseOptionalTime(query url.Values, name string, endOfDay bool) (*time.Time, error) {
	raw := query.Get(name)
	if raw == "" {
		return nil, nil
	}

	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		if endOfDay {
			day = day.Add(24*time.Hour - time.Nanosecond)
		}
		return &day, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, model.NewValidationError(name, fmt.Sprintf("must be %s or RFC3339", time.DateOnly))
	}
	t = t.UTC()
	return &t, nil
}
