package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/ledger"
)

// Engine is the ledger reconciliation and realized-profit core. It owns no
// derived state of its own: every answer is replayed from the append-only
// event stores, so a restart (or a back-dated insertion) can never leave it
// out of sync with the events.
type Engine struct {
	txRepo         *ledger.TransactionRepository
	cashRepo       *ledger.CashRepository
	locks          *clientLocks
	allowOverdraft bool
	log            zerolog.Logger
}

// New creates the engine. allowOverdraft controls the withdrawal policy:
// when false, withdrawals past the as-of balance fail with ErrInsufficientCash.
func New(txRepo *ledger.TransactionRepository, cashRepo *ledger.CashRepository, allowOverdraft bool, log zerolog.Logger) *Engine {
	return &Engine{
		txRepo:         txRepo,
		cashRepo:       cashRepo,
		locks:          newClientLocks(),
		allowOverdraft: allowOverdraft,
		log:            log.With().Str("component", "engine").Logger(),
	}
}

// RecordBuy validates and appends a buy, creating its open lot and the
// derived settlement cash event atomically.
func (e *Engine) RecordBuy(txn ledger.Transaction) (Lot, error) {
	txn.Side = ledger.SideBuy
	if err := validateTrade(txn); err != nil {
		return Lot{}, err
	}

	lock := e.locks.get(txn.ClientID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := e.txRepo.AppendWithSettlement(txn)
	if err != nil {
		return Lot{}, fmt.Errorf("failed to record buy: %w", err)
	}

	return lotFromBuy(stored), nil
}

// RecordSell validates a sell against the replayed instrument state, then
// appends it together with its settlement event. All-or-nothing: an
// oversell is rejected before anything is written, so no partial mutation
// can ever be observed.
func (e *Engine) RecordSell(txn ledger.Transaction) ([]RealizedLot, error) {
	txn.Side = ledger.SideSell
	if err := validateTrade(txn); err != nil {
		return nil, err
	}

	lock := e.locks.get(txn.ClientID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.txRepo.ListByClientInstrument(txn.ClientID, txn.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument events: %w", err)
	}

	// Dry run with the candidate sell in place. Its executed_at decides
	// where it lands in FIFO order, so back-dated sells are checked against
	// the holdings they would have seen.
	candidate := txn
	candidate.Seq = maxSeq(existing) + 1
	if _, err := Replay(txn.ClientID, append(existing, candidate), nil); err != nil {
		return nil, err
	}

	stored, err := e.txRepo.AppendWithSettlement(txn)
	if err != nil {
		return nil, fmt.Errorf("failed to record sell: %w", err)
	}

	// Replay with the stored event to report the realized lots under their
	// real transaction id.
	state, err := e.replayInstrument(txn.ClientID, txn.Symbol)
	if err != nil {
		return nil, err
	}

	var realized []RealizedLot
	for _, r := range state.Realized {
		if r.SellTransactionID == stored.ID {
			realized = append(realized, r)
		}
	}
	return realized, nil
}

// RecordCashEvent appends a deposit or withdrawal and returns the balance
// after it. Amount must be positive; the kind decides the sign.
func (e *Engine) RecordCashEvent(event ledger.CashEvent) (decimal.Decimal, error) {
	if !event.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("client %s, %s %s: %w",
			event.ClientID, event.Kind, event.Amount.String(), ErrInvalidAmount)
	}

	lock := e.locks.get(event.ClientID)
	lock.Lock()
	defer lock.Unlock()

	if event.Kind == ledger.KindWithdrawal {
		if !e.allowOverdraft {
			balance, err := e.cashRepo.Balance(event.ClientID, event.ExecutedAt)
			if err != nil {
				return decimal.Zero, err
			}
			if balance.LessThan(event.Amount) {
				return decimal.Zero, insufficientCash(event.ClientID,
					event.Amount.String(), balance.String())
			}
		}
		event.Amount = event.Amount.Neg()
	}

	if _, err := e.cashRepo.Append(event); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record cash event: %w", err)
	}

	return e.cashRepo.Balance(event.ClientID, event.ExecutedAt)
}

// State replays the client's complete event history into lots, realized
// gains and cash balance. Readers share the client's read lock, so queries
// run concurrently with each other and only wait out in-flight writes.
func (e *Engine) State(clientID string) (*ClientState, error) {
	lock := e.locks.get(clientID)
	lock.RLock()
	defer lock.RUnlock()

	txns, err := e.txRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	cash, err := e.cashRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash events: %w", err)
	}

	return Replay(clientID, txns, cash)
}

// Balance returns the derived cash balance as of a point in time.
func (e *Engine) Balance(clientID string, asOf time.Time) (decimal.Decimal, error) {
	lock := e.locks.get(clientID)
	lock.RLock()
	defer lock.RUnlock()

	return e.cashRepo.Balance(clientID, asOf)
}

// PurgeClient removes every event for a client (the deletion cascade). Lots
// and realized gains are derived, so deleting the events deletes everything.
func (e *Engine) PurgeClient(clientID string) error {
	lock := e.locks.get(clientID)
	lock.Lock()
	defer lock.Unlock()

	if err := e.txRepo.DeleteAllForClient(clientID); err != nil {
		return err
	}

	e.log.Info().Str("client", clientID).Msg("Client purged")
	return nil
}

func (e *Engine) replayInstrument(clientID, symbol string) (*ClientState, error) {
	txns, err := e.txRepo.ListByClientInstrument(clientID, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument events: %w", err)
	}
	return Replay(clientID, txns, nil)
}

func validateTrade(txn ledger.Transaction) error {
	if !txn.Quantity.IsPositive() {
		return invalidQuantity(txn.ClientID, txn.Symbol, txn.Quantity.String())
	}
	if txn.Price.IsNegative() {
		return fmt.Errorf("client %s, %s: price %s must not be negative",
			txn.ClientID, txn.Symbol, txn.Price.String())
	}
	if txn.Fees.IsNegative() {
		return fmt.Errorf("client %s, %s: fees %s must not be negative",
			txn.ClientID, txn.Symbol, txn.Fees.String())
	}
	return nil
}

func maxSeq(txns []ledger.Transaction) int64 {
	var max int64
	for _, t := range txns {
		if t.Seq > max {
			max = t.Seq
		}
	}
	return max
}
