package pricing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/clients/yahoo"
)

// Quoter is the slice of the quote client the pricing service needs.
type Quoter interface {
	GetCurrentPrice(symbol string, maxRetries int) (float64, error)
	GetHistoricalPrices(symbol string, period string) ([]yahoo.HistoricalPrice, error)
}

// Service answers price lookups cache-first and refreshes the cache from
// the quote client. It implements valuation.PriceSource.
type Service struct {
	cache   *CacheRepository
	history *HistoryStore
	quoter  Quoter
	maxAge  time.Duration
	log     zerolog.Logger
}

// NewService creates a pricing service. maxAge bounds how stale a cached
// quote may be before LatestPrice goes back to the quote client; zero
// means cached quotes never expire.
func NewService(cache *CacheRepository, history *HistoryStore, quoter Quoter, maxAge time.Duration, log zerolog.Logger) *Service {
	return &Service{
		cache:   cache,
		history: history,
		quoter:  quoter,
		maxAge:  maxAge,
		log:     log.With().Str("service", "pricing").Logger(),
	}
}

// LatestPrice returns the most recent price for a symbol. A fresh cache
// entry wins; otherwise the quote client is asked and the cache updated.
// A stale cache entry is still returned when the fetch fails.
func (s *Service) LatestPrice(symbol string) (decimal.Decimal, error) {
	cached, cacheErr := s.cache.Get(symbol)
	if cacheErr == nil && s.fresh(cached) {
		return cached.Price, nil
	}

	price, err := s.RefreshSymbol(symbol)
	if err != nil {
		if cacheErr == nil {
			s.log.Warn().Err(err).
				Str("symbol", symbol).
				Time("cached_at", cached.UpdatedAt).
				Msg("quote fetch failed, serving stale cache")
			return cached.Price, nil
		}
		return decimal.Zero, err
	}
	return price, nil
}

// RefreshSymbol fetches the current quote for one symbol and caches it.
func (s *Service) RefreshSymbol(symbol string) (decimal.Decimal, error) {
	raw, err := s.quoter.GetCurrentPrice(symbol, 0)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	price := decimal.NewFromFloat(raw)
	entry := &CachedPrice{
		Symbol:    symbol,
		Price:     price,
		Currency:  "USD",
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.cache.Upsert(entry); err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// RefreshAll refreshes quotes for every symbol, continuing past failures.
// Returns the number of symbols refreshed.
func (s *Service) RefreshAll(symbols []string) int {
	refreshed := 0
	for _, symbol := range symbols {
		if _, err := s.RefreshSymbol(symbol); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("quote refresh failed")
			continue
		}
		refreshed++
	}
	s.log.Info().Int("refreshed", refreshed).Int("total", len(symbols)).Msg("quote refresh done")
	return refreshed
}

// SyncHistory pulls daily OHLCV history for a symbol over a period
// (1mo, 3mo, 6mo, 1y, ...) into the symbol's history store.
func (s *Service) SyncHistory(symbol, period string) (int, error) {
	prices, err := s.quoter.GetHistoricalPrices(symbol, period)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	daily := make([]DailyPrice, 0, len(prices))
	for _, p := range prices {
		volume := p.Volume
		daily = append(daily, DailyPrice{
			Date:   p.Date.Format("2006-01-02"),
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: &volume,
		})
	}

	if err := s.history.AppendDaily(symbol, daily); err != nil {
		return 0, err
	}
	return len(daily), nil
}

// DailyHistory exposes the stored daily closes for a symbol, oldest first.
func (s *Service) DailyHistory(symbol string, limit int) ([]DailyPrice, error) {
	return s.history.GetDailyPrices(symbol, limit)
}

// DailyHistorySince exposes stored closes on or after a YYYY-MM-DD date.
func (s *Service) DailyHistorySince(symbol, since string) ([]DailyPrice, error) {
	return s.history.GetDailyPricesSince(symbol, since)
}

func (s *Service) fresh(p *CachedPrice) bool {
	if s.maxAge <= 0 {
		return true
	}
	return time.Since(p.UpdatedAt) < s.maxAge
}
