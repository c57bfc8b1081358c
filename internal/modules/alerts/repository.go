package alerts

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for lookups of unknown alerts.
var ErrNotFound = errors.New("alert not found")

const alertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
    id INTEGER PRIMARY KEY,
    client_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    target_price TEXT,
    stop_loss_price TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_client ON alerts(client_id);
`

// Repository handles alert persistence in the ledger database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// InitSchema creates the alerts table.
func (r *Repository) InitSchema() error {
	if _, err := r.db.Exec(alertsSchema); err != nil {
		return fmt.Errorf("failed to create alerts schema: %w", err)
	}
	return nil
}

// Create inserts a new alert and returns it with its assigned id.
func (r *Repository) Create(alert Alert) (Alert, error) {
	alert.CreatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO alerts (client_id, symbol, target_price, stop_loss_price, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		alert.ClientID,
		alert.Symbol,
		decimalArg(alert.TargetPrice),
		decimalArg(alert.StopLossPrice),
		alert.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Alert{}, fmt.Errorf("failed to create alert: %w", err)
	}

	if alert.ID, err = result.LastInsertId(); err != nil {
		return Alert{}, fmt.Errorf("failed to read alert id: %w", err)
	}

	r.log.Info().
		Str("client", alert.ClientID).
		Str("symbol", alert.Symbol).
		Int64("id", alert.ID).
		Msg("Alert created")
	return alert, nil
}

// ListByClient returns a client's alerts ordered by creation.
func (r *Repository) ListByClient(clientID string) ([]Alert, error) {
	return r.list(`
		SELECT id, client_id, symbol, target_price, stop_loss_price, created_at
		FROM alerts WHERE client_id = ? ORDER BY id
	`, clientID)
}

// ListAll returns every stored alert ordered by client.
func (r *Repository) ListAll() ([]Alert, error) {
	return r.list(`
		SELECT id, client_id, symbol, target_price, stop_loss_price, created_at
		FROM alerts ORDER BY client_id, id
	`)
}

// Delete removes one alert. The client id guards against deleting another
// client's alert by id.
func (r *Repository) Delete(clientID string, id int64) error {
	result, err := r.db.Exec("DELETE FROM alerts WHERE client_id = ? AND id = ?", clientID, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("client %s, alert %d: %w", clientID, id, ErrNotFound)
	}
	return nil
}

// DeleteAllForClient removes every alert for a client.
func (r *Repository) DeleteAllForClient(clientID string) error {
	if _, err := r.db.Exec("DELETE FROM alerts WHERE client_id = ?", clientID); err != nil {
		return fmt.Errorf("failed to delete alerts for %s: %w", clientID, err)
	}
	return nil
}

func (r *Repository) list(query string, args ...interface{}) ([]Alert, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var result []Alert
	for rows.Next() {
		var alert Alert
		var target, stopLoss sql.NullString
		var createdAt string
		if err := rows.Scan(&alert.ID, &alert.ClientID, &alert.Symbol, &target, &stopLoss, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if alert.TargetPrice, err = decimalCol(target); err != nil {
			return nil, fmt.Errorf("bad target_price: %w", err)
		}
		if alert.StopLossPrice, err = decimalCol(stopLoss); err != nil {
			return nil, fmt.Errorf("bad stop_loss_price: %w", err)
		}
		alert.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return result, nil
}

func decimalArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalCol(col sql.NullString) (*decimal.Decimal, error) {
	if !col.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(col.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
