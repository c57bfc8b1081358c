package charts

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles chart HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandlePriceChart handles GET /{symbol} with optional ?range=1M|3M|6M|1Y|5Y|10Y
func (h *Handler) HandlePriceChart(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	dateRange := r.URL.Query().Get("range")
	if dateRange == "" {
		dateRange = "1Y"
	}

	chart, err := h.service.PriceChart(symbol, dateRange)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to build chart")
		http.Error(w, "Failed to build chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chart)
}
