package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/ledger"
)

// Handler handles trade and cash HTTP requests
type Handler struct {
	engine   *Engine
	txRepo   *ledger.TransactionRepository
	cashRepo *ledger.CashRepository
	log      zerolog.Logger
}

// NewHandler creates a new engine handler
func NewHandler(eng *Engine, txRepo *ledger.TransactionRepository, cashRepo *ledger.CashRepository, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   eng,
		txRepo:   txRepo,
		cashRepo: cashRepo,
		log:      log.With().Str("handler", "engine").Logger(),
	}
}

type tradeRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Quantity   string `json:"quantity"`
	Price      string `json:"price"`
	Fees       string `json:"fees"`
	ExecutedAt string `json:"executed_at"`
}

type cashRequest struct {
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	ExecutedAt  string `json:"executed_at"`
	Description string `json:"description"`
}

// HandleListTransactions handles GET /transactions with optional ?symbol=
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))

	var (
		txns []ledger.Transaction
		err  error
	)
	if symbol != "" {
		txns, err = h.txRepo.ListByClientInstrument(clientID, symbol)
	} else {
		txns, err = h.txRepo.ListByClient(clientID)
	}
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to list transactions")
		http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
		return
	}
	if txns == nil {
		txns = []ledger.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txns)
}

// HandleRecordTrade handles POST /transactions - record a buy or sell
func (h *Handler) HandleRecordTrade(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	txn, err := h.buildTransaction(clientID, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch txn.Side {
	case ledger.SideBuy:
		lot, err := h.engine.RecordBuy(txn)
		if err != nil {
			h.writeTradeError(w, clientID, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"lot": lot})

	case ledger.SideSell:
		realized, err := h.engine.RecordSell(txn)
		if err != nil {
			h.writeTradeError(w, clientID, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"realized": realized})
	}
}

// HandleListCash handles GET /cash - list deposits, withdrawals, settlements
func (h *Handler) HandleListCash(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	events, err := h.cashRepo.ListByClient(clientID)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to list cash events")
		http.Error(w, "Failed to retrieve cash events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []ledger.CashEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}

// HandleRecordCash handles POST /cash - record a deposit or withdrawal
func (h *Handler) HandleRecordCash(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	var req cashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	var kind ledger.CashEventKind
	switch strings.ToUpper(req.Kind) {
	case "DEPOSIT":
		kind = ledger.KindDeposit
	case "WITHDRAWAL":
		kind = ledger.KindWithdrawal
	default:
		http.Error(w, "kind must be DEPOSIT or WITHDRAWAL", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "amount must be a number", http.StatusBadRequest)
		return
	}

	executedAt, err := parseTimestamp(req.ExecutedAt)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	balance, err := h.engine.RecordCashEvent(ledger.CashEvent{
		ClientID:    clientID,
		Kind:        kind,
		Amount:      amount,
		ExecutedAt:  executedAt,
		Description: req.Description,
	})
	if err != nil {
		h.writeTradeError(w, clientID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"balance": balance})
}

// HandleBalance handles GET /cash/balance with optional ?as_of=
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		asOf = parsed
	}

	balance, err := h.engine.Balance(clientID, asOf)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to compute balance")
		http.Error(w, "Failed to compute balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"client_id": clientID,
		"as_of":     asOf,
		"balance":   balance,
	})
}

func (h *Handler) buildTransaction(clientID string, req tradeRequest) (ledger.Transaction, error) {
	var side ledger.Side
	switch strings.ToUpper(req.Side) {
	case "BUY":
		side = ledger.SideBuy
	case "SELL":
		side = ledger.SideSell
	default:
		return ledger.Transaction{}, errors.New("side must be BUY or SELL")
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return ledger.Transaction{}, errors.New("symbol is required")
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return ledger.Transaction{}, errors.New("quantity must be a number")
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return ledger.Transaction{}, errors.New("price must be a number")
	}
	fees := decimal.Zero
	if req.Fees != "" {
		if fees, err = decimal.NewFromString(req.Fees); err != nil {
			return ledger.Transaction{}, errors.New("fees must be a number")
		}
	}

	executedAt, err := parseTimestamp(req.ExecutedAt)
	if err != nil {
		return ledger.Transaction{}, err
	}

	return ledger.Transaction{
		ClientID:   clientID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		Fees:       fees,
		ExecutedAt: executedAt,
	}, nil
}

// writeTradeError maps domain errors to HTTP statuses.
func (h *Handler) writeTradeError(w http.ResponseWriter, clientID string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientHoldings), errors.Is(err, ErrInsufficientCash):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Str("client", clientID).Msg("Failed to record event")
		http.Error(w, "Failed to record event", http.StatusInternalServerError)
	}
}

// parseTimestamp accepts RFC3339 or a bare date; empty means now.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("executed_at must be RFC3339 or YYYY-MM-DD")
}
