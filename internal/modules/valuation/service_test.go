package valuation

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/database"
	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/ledger"
)

type stubPrices struct {
	prices map[string]string
	fail   map[string]bool
}

func (s *stubPrices) LatestPrice(symbol string) (decimal.Decimal, error) {
	if s.fail[symbol] {
		return decimal.Zero, fmt.Errorf("quote service down")
	}
	raw, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown symbol %s", symbol)
	}
	return decimal.RequireFromString(raw), nil
}

func setupService(t *testing.T, prices PriceSource) (*Service, *engine.Engine) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ledger.InitSchema(db.Conn()))

	eng := engine.New(
		ledger.NewTransactionRepository(db.Conn(), zerolog.Nop()),
		ledger.NewCashRepository(db.Conn(), zerolog.Nop()),
		true,
		zerolog.Nop(),
	)
	return NewService(eng, prices, zerolog.Nop()), eng
}

func record(t *testing.T, eng *engine.Engine, side ledger.Side, symbol, qty, price string, day int) {
	t.Helper()
	txn := ledger.Transaction{
		ClientID:   "acme",
		Symbol:     symbol,
		Quantity:   decimal.RequireFromString(qty),
		Price:      decimal.RequireFromString(price),
		Fees:       decimal.Zero,
		ExecutedAt: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
	}
	var err error
	if side == ledger.SideBuy {
		_, err = eng.RecordBuy(txn)
	} else {
		_, err = eng.RecordSell(txn)
	}
	require.NoError(t, err)
}

func TestHoldings_WeightedAverageCostBasis(t *testing.T) {
	svc, eng := setupService(t, &stubPrices{prices: map[string]string{"AAPL": "5"}})

	record(t, eng, ledger.SideBuy, "AAPL", "10", "1", 1)
	record(t, eng, ledger.SideBuy, "AAPL", "10", "3", 2)

	holdings, err := svc.Holdings("acme")
	require.NoError(t, err)
	require.Contains(t, holdings, "AAPL")

	h := holdings["AAPL"]
	assert.True(t, h.Quantity.Equal(decimal.RequireFromString("20")))
	assert.True(t, h.AverageCostBasis.Equal(decimal.RequireFromString("2")), "avg %s", h.AverageCostBasis)

	require.NotNil(t, h.MarketValue)
	assert.True(t, h.MarketValue.Equal(decimal.RequireFromString("100")))
	require.NotNil(t, h.UnrealizedGain)
	assert.True(t, h.UnrealizedGain.Equal(decimal.RequireFromString("60")))
}

func TestHoldings_PartialSellShiftsAverage(t *testing.T) {
	svc, eng := setupService(t, &stubPrices{prices: map[string]string{"AAPL": "10"}})

	record(t, eng, ledger.SideBuy, "AAPL", "10", "1", 1)
	record(t, eng, ledger.SideBuy, "AAPL", "10", "3", 2)
	record(t, eng, ledger.SideSell, "AAPL", "15", "4", 3)

	holdings, err := svc.Holdings("acme")
	require.NoError(t, err)

	// Only 5 of the $3 lot remain.
	h := holdings["AAPL"]
	assert.True(t, h.Quantity.Equal(decimal.RequireFromString("5")))
	assert.True(t, h.AverageCostBasis.Equal(decimal.RequireFromString("3")))
}

func TestHoldings_FullyClosedPositionOmitted(t *testing.T) {
	svc, eng := setupService(t, &stubPrices{prices: map[string]string{"AAPL": "10"}})

	record(t, eng, ledger.SideBuy, "AAPL", "10", "1", 1)
	record(t, eng, ledger.SideSell, "AAPL", "10", "2", 2)

	holdings, err := svc.Holdings("acme")
	require.NoError(t, err)
	assert.NotContains(t, holdings, "AAPL")
}

func TestHoldings_PriceFailureDegradesPerInstrument(t *testing.T) {
	svc, eng := setupService(t, &stubPrices{
		prices: map[string]string{"AAPL": "5"},
		fail:   map[string]bool{"MSFT": true},
	})

	record(t, eng, ledger.SideBuy, "AAPL", "10", "1", 1)
	record(t, eng, ledger.SideBuy, "MSFT", "4", "2", 1)

	holdings, err := svc.Holdings("acme")
	require.NoError(t, err, "one failed quote must not fail the query")

	require.Contains(t, holdings, "MSFT")
	msft := holdings["MSFT"]
	assert.Nil(t, msft.MarketValue)
	assert.Nil(t, msft.UnrealizedGain)
	assert.Contains(t, msft.PriceError, "price unavailable")
	assert.True(t, msft.CostBasis.Equal(decimal.RequireFromString("8")))

	aapl := holdings["AAPL"]
	require.NotNil(t, aapl.MarketValue)
	assert.True(t, aapl.MarketValue.Equal(decimal.RequireFromString("50")))
}

func TestTotal_SkipsUnpricedFromMarketValue(t *testing.T) {
	svc, eng := setupService(t, &stubPrices{
		prices: map[string]string{"AAPL": "5"},
		fail:   map[string]bool{"MSFT": true},
	})

	record(t, eng, ledger.SideBuy, "AAPL", "10", "1", 1)
	record(t, eng, ledger.SideBuy, "MSFT", "4", "2", 1)

	holdings, err := svc.Holdings("acme")
	require.NoError(t, err)

	totals := Total(holdings)
	assert.True(t, totals.CostBasis.Equal(decimal.RequireFromString("18")))
	assert.True(t, totals.MarketValue.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, []string{"MSFT"}, totals.Unpriced)
}
