package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionRepository handles the append-only trade event store
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

// AppendWithSettlement appends a trade and its derived settlement cash event
// in a single database transaction. The settlement amount is computed from
// the trade itself so the two can never disagree. Returns the stored trade
// with its assigned id and sequence number.
func (r *TransactionRepository) AppendWithSettlement(txn Transaction) (Transaction, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	txn.Symbol = strings.ToUpper(strings.TrimSpace(txn.Symbol))

	seq, err := nextSeq(tx, txn.ClientID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	txn.Seq = seq

	result, err := tx.Exec(`
		INSERT INTO transactions
		(client_id, symbol, side, quantity, price, fees, executed_at, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ClientID,
		txn.Symbol,
		string(txn.Side),
		txn.Quantity.String(),
		txn.Price.String(),
		txn.Fees.String(),
		txn.ExecutedAt.UTC().Format(time.RFC3339),
		txn.Seq,
		now,
	)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get transaction id: %w", err)
	}
	txn.ID = id

	// Derived settlement entry, same timestamp, next sequence slot.
	settleSeq, err := nextSeq(tx, txn.ClientID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to allocate settlement sequence: %w", err)
	}

	verb := "Purchase"
	if txn.Side == SideSell {
		verb = "Sale"
	}
	description := fmt.Sprintf("%s of %s %s", verb, txn.Quantity.String(), txn.Symbol)

	_, err = tx.Exec(`
		INSERT INTO cash_events
		(client_id, kind, amount, executed_at, seq, linked_transaction_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ClientID,
		string(KindTradeSettlement),
		txn.SettlementAmount().String(),
		txn.ExecutedAt.UTC().Format(time.RFC3339),
		settleSeq,
		txn.ID,
		description,
		now,
	)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to insert settlement event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, fmt.Errorf("failed to commit trade: %w", err)
	}

	r.log.Info().
		Str("client", txn.ClientID).
		Str("symbol", txn.Symbol).
		Str("side", string(txn.Side)).
		Str("quantity", txn.Quantity.String()).
		Msg("Trade appended")

	return txn, nil
}

// ListByClientInstrument returns all trades for one client and symbol,
// ordered by (executed_at, seq) ascending. This is the FIFO replay order.
func (r *TransactionRepository) ListByClientInstrument(clientID, symbol string) ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, client_id, symbol, side, quantity, price, fees, executed_at, seq, created_at
		FROM transactions
		WHERE client_id = ? AND symbol = ?
		ORDER BY executed_at ASC, seq ASC
	`, clientID, strings.ToUpper(strings.TrimSpace(symbol)))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByClient returns all trades for a client in replay order.
func (r *TransactionRepository) ListByClient(clientID string) ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, client_id, symbol, side, quantity, price, fees, executed_at, seq, created_at
		FROM transactions
		WHERE client_id = ?
		ORDER BY executed_at ASC, seq ASC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// Symbols returns the distinct instruments a client has ever traded.
func (r *TransactionRepository) Symbols(clientID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT symbol FROM transactions WHERE client_id = ? ORDER BY symbol
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// AllHeldSymbols returns every symbol present in the store across clients.
// Used by the price refresh job to know what to quote.
func (r *TransactionRepository) AllHeldSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM transactions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DeleteAllForClient removes a client's trades, cash events and sequence
// counter in one database transaction. Lots and realized gains are derived
// state, so deleting the events is the whole cascade.
func (r *TransactionRepository) DeleteAllForClient(clientID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cascade delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM cash_events WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to delete cash events: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM transactions WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM client_seq WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to delete sequence counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cascade delete: %w", err)
	}

	r.log.Info().Str("client", clientID).Msg("Client events deleted")
	return nil
}

// Count returns the number of trades recorded for a client.
func (r *TransactionRepository) Count(clientID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions WHERE client_id = ?", clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) collect(rows *sql.Rows) ([]Transaction, error) {
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var txn Transaction
	var side, quantity, price, fees, executedAt, createdAt string

	err := rows.Scan(
		&txn.ID,
		&txn.ClientID,
		&txn.Symbol,
		&side,
		&quantity,
		&price,
		&fees,
		&executedAt,
		&txn.Seq,
		&createdAt,
	)
	if err != nil {
		return txn, err
	}

	txn.Side = Side(side)
	if txn.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return txn, fmt.Errorf("bad quantity %q: %w", quantity, err)
	}
	if txn.Price, err = decimal.NewFromString(price); err != nil {
		return txn, fmt.Errorf("bad price %q: %w", price, err)
	}
	if txn.Fees, err = decimal.NewFromString(fees); err != nil {
		return txn, fmt.Errorf("bad fees %q: %w", fees, err)
	}
	if txn.ExecutedAt, err = time.Parse(time.RFC3339, executedAt); err != nil {
		return txn, fmt.Errorf("bad executed_at %q: %w", executedAt, err)
	}
	txn.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return txn, nil
}
