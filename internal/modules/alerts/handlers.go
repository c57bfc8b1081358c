package alerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles alert HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new alerts handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "alerts").Logger(),
	}
}

type setAlertRequest struct {
	Symbol        string `json:"symbol"`
	TargetPrice   string `json:"target_price"`
	StopLossPrice string `json:"stop_loss_price"`
}

// HandleList handles GET /alerts - list the client's alerts with their
// current evaluation
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	statuses, err := h.service.ListForClient(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to list alerts")
		http.Error(w, "Failed to retrieve alerts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

// HandleCreate handles POST /alerts - set a price alert
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	var req setAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	target, err := parsePrice(req.TargetPrice)
	if err != nil {
		http.Error(w, "target_price must be a number", http.StatusBadRequest)
		return
	}
	stopLoss, err := parsePrice(req.StopLossPrice)
	if err != nil {
		http.Error(w, "stop_loss_price must be a number", http.StatusBadRequest)
		return
	}

	created, err := h.service.Set(Alert{
		ClientID:      clientID,
		Symbol:        req.Symbol,
		TargetPrice:   target,
		StopLossPrice: stopLoss,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAlert) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to set alert")
		http.Error(w, "Failed to set alert", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleDelete handles DELETE /alerts/{alert}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	id, err := strconv.ParseInt(chi.URLParam(r, "alert"), 10, 64)
	if err != nil {
		http.Error(w, "alert id must be an integer", http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(clientID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("client", clientID).Int64("alert", id).Msg("Failed to delete alert")
		http.Error(w, "Failed to delete alert", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parsePrice(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
