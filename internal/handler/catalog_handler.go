package handler

import (
	"net/http"
	"strconv"

	"estimate-api/internal/model"
	"estimate-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CatalogHandler serves the read-only catalog used to build quote requests.
type CatalogHandler struct {
	prices service.PriceBook
	logger zerolog.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(prices service.PriceBook, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		prices: prices,
		logger: logger.With().Str("handler", "catalog").Logger(),
	}
}

// ListItems handles GET /api/items requests.
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.prices.ListBaseItems(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	if items == nil {
		items = []model.BaseItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

// ListOptions handles GET /api/items/{id}/options requests.
func (h *CatalogHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid base item ID format", "id")
		return
	}

	options, err := h.prices.ListOptions(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.logger)
		return
	}
	if options == nil {
		options = []model.Option{}
	}

	writeJSON(w, http.StatusOK, options)
}
