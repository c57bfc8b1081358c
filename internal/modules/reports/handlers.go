package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/valuation"
)

// Handler handles reporting and reconciliation HTTP requests
type Handler struct {
	service   *Service
	valuation *valuation.Service
	log       zerolog.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, val *valuation.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		valuation: val,
		log:       log.With().Str("handler", "reports").Logger(),
	}
}

// HandleHoldings handles GET /holdings - positions with market values
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	holdings, err := h.valuation.Holdings(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to compute holdings")
		http.Error(w, "Failed to compute holdings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(holdings)
}

// HandleLedger handles GET /ledger - chronological statement with running balance
func (h *Handler) HandleLedger(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	entries, err := h.service.LedgerView(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to build ledger view")
		http.Error(w, "Failed to build ledger view", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// HandleRealized handles GET /realized with optional ?from=&to= (YYYY-MM-DD)
func (h *Handler) HandleRealized(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	total, err := h.service.RealizedPnL(clientID, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to compute realized PnL")
		http.Error(w, "Failed to compute realized PnL", http.StatusInternalServerError)
		return
	}

	lots, err := h.service.RealizedLots(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to list realized lots")
		http.Error(w, "Failed to list realized lots", http.StatusInternalServerError)
		return
	}

	filtered := make([]engine.RealizedLot, 0, len(lots))
	for _, lot := range lots {
		if lot.SoldAt.Before(from) || lot.SoldAt.After(to) {
			continue
		}
		filtered = append(filtered, lot)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"client_id": clientID,
		"from":      from,
		"to":        to,
		"realized":  total,
		"lots":      filtered,
	})
}

// HandleSummary handles GET /summary - reconciliation snapshot
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	summary, err := h.service.Summary(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to build summary")
		http.Error(w, "Failed to build summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// HandlePerformance handles GET /performance with optional ?risk_free_rate=
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	riskFreeRate := 0.0
	if raw := r.URL.Query().Get("risk_free_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "risk_free_rate must be a number", http.StatusBadRequest)
			return
		}
		riskFreeRate = parsed
	}

	perf, err := h.service.PerformanceReport(clientID, riskFreeRate)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to build performance report")
		http.Error(w, "Failed to build performance report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(perf)
}

var (
	errInvalidDate   = errors.New("dates must use YYYY-MM-DD")
	errInvertedRange = errors.New("from must be <= to")
)

// parseRange converts from/to date strings into an inclusive window.
// Missing bounds default to all time.
func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	if fromRaw != "" {
		parsed, err := time.Parse("2006-01-02", fromRaw)
		if err != nil {
			return from, to, errInvalidDate
		}
		from = parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse("2006-01-02", toRaw)
		if err != nil {
			return from, to, errInvalidDate
		}
		// Inclusive through the end of the day.
		to = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return from, to, errInvertedRange
	}
	return from, to, nil
}
