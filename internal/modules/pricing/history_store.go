package pricing

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
	"github.com/rs/zerolog"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	date        TEXT PRIMARY KEY,
	open_price  REAL NOT NULL,
	high_price  REAL NOT NULL,
	low_price   REAL NOT NULL,
	close_price REAL NOT NULL,
	volume      INTEGER
);
`

// HistoryStore keeps daily closes in one SQLite file per symbol.
type HistoryStore struct {
	historyDir string
	log        zerolog.Logger
}

// NewHistoryStore creates a new history store rooted at historyDir.
func NewHistoryStore(historyDir string, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		historyDir: historyDir,
		log:        log.With().Str("component", "history_store").Logger(),
	}
}

// AppendDaily upserts daily price rows for a symbol. Dates already present
// are overwritten, so re-fetching an overlapping range is safe.
func (h *HistoryStore) AppendDaily(symbol string, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	db, err := h.openHistoryDB(symbol)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(historySchema); err != nil {
		return fmt.Errorf("failed to create history schema for %s: %w", symbol, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction for %s: %w", symbol, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (date, open_price, high_price, low_price, close_price, volume)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			open_price = excluded.open_price,
			high_price = excluded.high_price,
			low_price = excluded.low_price,
			close_price = excluded.close_price,
			volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert for %s: %w", symbol, err)
	}
	defer stmt.Close()

	for _, p := range prices {
		var volume interface{}
		if p.Volume != nil {
			volume = *p.Volume
		}
		if _, err := stmt.Exec(p.Date, p.Open, p.High, p.Low, p.Close, volume); err != nil {
			return fmt.Errorf("failed to insert daily price %s %s: %w", symbol, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history for %s: %w", symbol, err)
	}

	h.log.Debug().Str("symbol", symbol).Int("count", len(prices)).Msg("daily prices stored")
	return nil
}

// GetDailyPrices fetches the most recent daily prices for a symbol,
// oldest first.
func (h *HistoryStore) GetDailyPrices(symbol string, limit int) ([]DailyPrice, error) {
	db, err := h.openHistoryDB(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := `
		SELECT date, open_price, high_price, low_price, close_price, volume
		FROM (
			SELECT date, open_price, high_price, low_price, close_price, volume
			FROM daily_prices
			ORDER BY date DESC
			LIMIT ?
		)
		ORDER BY date ASC
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullInt64

		err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}

		if volume.Valid {
			p.Volume = &volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// GetDailyPricesSince fetches daily prices on or after a date (YYYY-MM-DD),
// oldest first.
func (h *HistoryStore) GetDailyPricesSince(symbol, since string) ([]DailyPrice, error) {
	db, err := h.openHistoryDB(symbol)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT date, open_price, high_price, low_price, close_price, volume
		FROM daily_prices
		WHERE date >= ?
		ORDER BY date ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var volume sql.NullInt64

		if err := rows.Scan(&p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if volume.Valid {
			p.Volume = &volume.Int64
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// openHistoryDB opens the history database for a symbol
func (h *HistoryStore) openHistoryDB(symbol string) (*sql.DB, error) {
	// Convert symbol format: BRK.B -> BRK_B
	dbSymbol := strings.ReplaceAll(symbol, ".", "_")

	dbPath := filepath.Join(h.historyDir, dbSymbol+".db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database for %s: %w", symbol, err)
	}

	// Verify database is accessible
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database for %s: %w", symbol, err)
	}

	return db, nil
}
