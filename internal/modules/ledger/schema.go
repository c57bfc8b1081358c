package ledger

import "database/sql"

// Schema creates the append-only event tables. Transactions and cash events
// share a per-client sequence counter so the two streams merge into one
// deterministic ordering by (executed_at, seq).
const Schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY,
    client_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
    quantity TEXT NOT NULL,
    price TEXT NOT NULL,
    fees TEXT NOT NULL DEFAULT '0',
    executed_at TEXT NOT NULL,
    seq INTEGER NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_client_symbol
    ON transactions(client_id, symbol, executed_at, seq);
CREATE INDEX IF NOT EXISTS idx_transactions_client
    ON transactions(client_id, executed_at, seq);

CREATE TABLE IF NOT EXISTS cash_events (
    id INTEGER PRIMARY KEY,
    client_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('DEPOSIT', 'WITHDRAWAL', 'TRADE_SETTLEMENT')),
    amount TEXT NOT NULL,
    executed_at TEXT NOT NULL,
    seq INTEGER NOT NULL,
    linked_transaction_id INTEGER REFERENCES transactions(id),
    description TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cash_events_client
    ON cash_events(client_id, executed_at, seq);

CREATE TABLE IF NOT EXISTS client_seq (
    client_id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL
);
`

// InitSchema ensures the event tables exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// nextSeq allocates the next per-client sequence number inside tx.
func nextSeq(tx *sql.Tx, clientID string) (int64, error) {
	var seq int64
	err := tx.QueryRow(`
		INSERT INTO client_seq (client_id, seq) VALUES (?, 1)
		ON CONFLICT(client_id) DO UPDATE SET seq = seq + 1
		RETURNING seq
	`, clientID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
