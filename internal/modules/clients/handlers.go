package clients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler handles client HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new clients handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "clients").Logger(),
	}
}

type createClientRequest struct {
	Name        string `json:"name"`
	InitialCash string `json:"initial_cash"`
	RiskProfile string `json:"risk_profile"`
}

// HandleList handles GET / - list all clients
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list clients")
		http.Error(w, "Failed to retrieve clients", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []Client{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// HandleCreate handles POST / - register a client
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	initialCash := decimal.Zero
	if req.InitialCash != "" {
		var err error
		initialCash, err = decimal.NewFromString(req.InitialCash)
		if err != nil || initialCash.IsNegative() {
			http.Error(w, "initial_cash must be a non-negative number", http.StatusBadRequest)
			return
		}
	}

	created, err := h.service.Create(Client{
		Name:        req.Name,
		InitialCash: initialCash,
		RiskProfile: req.RiskProfile,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			http.Error(w, "Client already exists", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Str("client", req.Name).Msg("Failed to create client")
		http.Error(w, "Failed to create client", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// HandleGet handles GET /{client}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "client")

	client, err := h.service.Get(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Client not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("client", name).Msg("Failed to get client")
		http.Error(w, "Failed to retrieve client", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client)
}

// HandleDelete handles DELETE /{client} - remove the client and its history
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "client")

	if err := h.service.Delete(name); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Client not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("client", name).Msg("Failed to delete client")
		http.Error(w, "Failed to delete client", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
