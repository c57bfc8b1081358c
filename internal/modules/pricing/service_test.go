package pricing

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/clients/yahoo"
	"github.com/oakmont/folio/internal/database"
)

type stubQuoter struct {
	prices  map[string]float64
	history map[string][]yahoo.HistoricalPrice
	calls   int
}

func (q *stubQuoter) GetCurrentPrice(symbol string, _ int) (float64, error) {
	q.calls++
	p, ok := q.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no quote data returned for symbol %s", symbol)
	}
	return p, nil
}

func (q *stubQuoter) GetHistoricalPrices(symbol string, _ string) ([]yahoo.HistoricalPrice, error) {
	return q.history[symbol], nil
}

func setupPricing(t *testing.T, quoter *stubQuoter, maxAge time.Duration) (*Service, *CacheRepository) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	cache := NewCacheRepository(db.Conn(), log)
	require.NoError(t, cache.InitSchema())

	history := NewHistoryStore(t.TempDir(), log)
	return NewService(cache, history, quoter, maxAge, log), cache
}

func TestLatestPrice_FetchesAndCaches(t *testing.T) {
	quoter := &stubQuoter{prices: map[string]float64{"AAPL": 187.5}}
	svc, cache := setupPricing(t, quoter, time.Hour)

	price, err := svc.LatestPrice("AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(187.5)))

	cached, err := cache.Get("AAPL")
	require.NoError(t, err)
	assert.True(t, cached.Price.Equal(decimal.NewFromFloat(187.5)))

	// Second lookup served from cache, no new fetch.
	_, err = svc.LatestPrice("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, quoter.calls)
}

func TestLatestPrice_StaleCacheServedOnFetchFailure(t *testing.T) {
	quoter := &stubQuoter{prices: map[string]float64{}}
	svc, cache := setupPricing(t, quoter, time.Minute)

	require.NoError(t, cache.Upsert(&CachedPrice{
		Symbol:    "MSFT",
		Price:     decimal.NewFromInt(400),
		Currency:  "USD",
		UpdatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}))

	price, err := svc.LatestPrice("MSFT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(400)))
}

func TestLatestPrice_UnknownSymbol(t *testing.T) {
	quoter := &stubQuoter{prices: map[string]float64{}}
	svc, _ := setupPricing(t, quoter, time.Hour)

	_, err := svc.LatestPrice("NOPE")
	require.Error(t, err)
}

func TestRefreshAll_ContinuesPastFailures(t *testing.T) {
	quoter := &stubQuoter{prices: map[string]float64{"AAPL": 10, "GOOG": 20}}
	svc, cache := setupPricing(t, quoter, 0)

	refreshed := svc.RefreshAll([]string{"AAPL", "BAD", "GOOG"})
	assert.Equal(t, 2, refreshed)

	prices, err := cache.List()
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestCacheUpsert_Replaces(t *testing.T) {
	quoter := &stubQuoter{}
	_, cache := setupPricing(t, quoter, 0)

	require.NoError(t, cache.Upsert(&CachedPrice{
		Symbol: "AAPL", Price: decimal.NewFromInt(100), Currency: "USD", UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, cache.Upsert(&CachedPrice{
		Symbol: "AAPL", Price: decimal.NewFromInt(110), Currency: "USD", UpdatedAt: time.Now().UTC(),
	}))

	cached, err := cache.Get("AAPL")
	require.NoError(t, err)
	assert.True(t, cached.Price.Equal(decimal.NewFromInt(110)))
}

func TestSyncHistory_RoundTrip(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
	}
	quoter := &stubQuoter{history: map[string][]yahoo.HistoricalPrice{
		"AAPL": {
			{Date: day(1), Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
			{Date: day(2), Open: 11, High: 13, Low: 10, Close: 12, Volume: 200},
			{Date: day(3), Open: 12, High: 14, Low: 11, Close: 13, Volume: 300},
		},
	}}
	svc, _ := setupPricing(t, quoter, 0)

	n, err := svc.SyncHistory("AAPL", "1mo")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	prices, err := svc.DailyHistory("AAPL", 2)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	// Oldest first within the requested window.
	assert.Equal(t, "2024-03-02", prices[0].Date)
	assert.Equal(t, "2024-03-03", prices[1].Date)
	assert.Equal(t, 13.0, prices[1].Close)

	since, err := svc.DailyHistorySince("AAPL", "2024-03-02")
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "2024-03-02", since[0].Date)

	// Re-sync overlapping range is an upsert, not a duplicate.
	_, err = svc.SyncHistory("AAPL", "1mo")
	require.NoError(t, err)
	all, err := svc.DailyHistory("AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
