package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CashRepository handles the append-only cash event store
type CashRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCashRepository creates a new cash event repository
func NewCashRepository(db *sql.DB, log zerolog.Logger) *CashRepository {
	return &CashRepository{
		db:  db,
		log: log.With().Str("repo", "cash_events").Logger(),
	}
}

// Append stores a deposit or withdrawal. Settlement events are written by
// the transaction repository alongside the trade they settle, never here.
func (r *CashRepository) Append(event CashEvent) (CashEvent, error) {
	if event.Kind == KindTradeSettlement {
		return CashEvent{}, fmt.Errorf("settlement events are derived from trades and cannot be appended directly")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return CashEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(tx, event.ClientID)
	if err != nil {
		return CashEvent{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	event.Seq = seq

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := tx.Exec(`
		INSERT INTO cash_events
		(client_id, kind, amount, executed_at, seq, linked_transaction_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
	`,
		event.ClientID,
		string(event.Kind),
		event.Amount.String(),
		event.ExecutedAt.UTC().Format(time.RFC3339),
		event.Seq,
		event.Description,
		now,
	)
	if err != nil {
		return CashEvent{}, fmt.Errorf("failed to insert cash event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return CashEvent{}, fmt.Errorf("failed to get cash event id: %w", err)
	}
	event.ID = id

	if err := tx.Commit(); err != nil {
		return CashEvent{}, fmt.Errorf("failed to commit cash event: %w", err)
	}

	r.log.Info().
		Str("client", event.ClientID).
		Str("kind", string(event.Kind)).
		Str("amount", event.Amount.String()).
		Msg("Cash event appended")

	return event, nil
}

// ListByClient returns all cash events for a client ordered by
// (executed_at, seq) ascending.
func (r *CashRepository) ListByClient(clientID string) ([]CashEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, client_id, kind, amount, executed_at, seq, linked_transaction_id, description, created_at
		FROM cash_events
		WHERE client_id = ?
		ORDER BY executed_at ASC, seq ASC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash events: %w", err)
	}
	defer rows.Close()

	var events []CashEvent
	for rows.Next() {
		event, err := scanCashEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash events: %w", err)
	}
	return events, nil
}

// Balance sums all cash event amounts for a client with executed_at <= asOf.
// There is no stored running total; the balance is always derived from the
// full history so it cannot drift.
func (r *CashRepository) Balance(clientID string, asOf time.Time) (decimal.Decimal, error) {
	rows, err := r.db.Query(`
		SELECT amount FROM cash_events
		WHERE client_id = ? AND executed_at <= ?
	`, clientID, asOf.UTC().Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad amount %q: %w", raw, err)
		}
		balance = balance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amounts: %w", err)
	}
	return balance, nil
}

func scanCashEvent(rows *sql.Rows) (CashEvent, error) {
	var event CashEvent
	var kind, amount, executedAt, createdAt string
	var linked sql.NullInt64
	var description sql.NullString

	err := rows.Scan(
		&event.ID,
		&event.ClientID,
		&kind,
		&amount,
		&executedAt,
		&event.Seq,
		&linked,
		&description,
		&createdAt,
	)
	if err != nil {
		return event, err
	}

	event.Kind = CashEventKind(kind)
	if event.Amount, err = decimal.NewFromString(amount); err != nil {
		return event, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if event.ExecutedAt, err = time.Parse(time.RFC3339, executedAt); err != nil {
		return event, fmt.Errorf("bad executed_at %q: %w", executedAt, err)
	}
	if linked.Valid {
		event.LinkedTransactionID = &linked.Int64
	}
	if description.Valid {
		event.Description = description.String
	}
	event.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return event, nil
}
