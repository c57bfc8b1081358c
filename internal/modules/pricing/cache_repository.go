package pricing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNotCached is returned when no quote has been stored for a symbol.
var ErrNotCached = errors.New("no cached price")

const cacheSchema = `
CREATE TABLE IF NOT EXISTS price_cache (
	symbol     TEXT PRIMARY KEY,
	price      TEXT NOT NULL,
	currency   TEXT NOT NULL DEFAULT 'USD',
	updated_at TEXT NOT NULL
);
`

// CacheRepository stores the latest quote per symbol in the ledger database.
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repo", "price_cache").Logger(),
	}
}

// InitSchema creates the price_cache table.
func (r *CacheRepository) InitSchema() error {
	if _, err := r.db.Exec(cacheSchema); err != nil {
		return fmt.Errorf("failed to create price_cache schema: %w", err)
	}
	return nil
}

// Upsert stores or replaces the cached quote for a symbol.
func (r *CacheRepository) Upsert(p *CachedPrice) error {
	query := `
		INSERT INTO price_cache (symbol, price, currency, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query,
		p.Symbol, p.Price.String(), p.Currency, p.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert cached price for %s: %w", p.Symbol, err)
	}
	return nil
}

// Get returns the cached quote for a symbol, or ErrNotCached.
func (r *CacheRepository) Get(symbol string) (*CachedPrice, error) {
	row := r.db.QueryRow(
		`SELECT symbol, price, currency, updated_at FROM price_cache WHERE symbol = ?`, symbol)

	var p CachedPrice
	var price, updatedAt string
	if err := row.Scan(&p.Symbol, &price, &p.Currency, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNotCached)
		}
		return nil, fmt.Errorf("failed to read cached price for %s: %w", symbol, err)
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("failed to parse cached price for %s: %w", symbol, err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse cache timestamp for %s: %w", symbol, err)
	}
	return &p, nil
}

// List returns every cached quote, most recently updated first.
func (r *CacheRepository) List() ([]CachedPrice, error) {
	rows, err := r.db.Query(
		`SELECT symbol, price, currency, updated_at FROM price_cache ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached prices: %w", err)
	}
	defer rows.Close()

	var prices []CachedPrice
	for rows.Next() {
		var p CachedPrice
		var price, updatedAt string
		if err := rows.Scan(&p.Symbol, &price, &p.Currency, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached price: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse cached price: %w", err)
		}
		if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse cache timestamp: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cached prices: %w", err)
	}
	return prices, nil
}
