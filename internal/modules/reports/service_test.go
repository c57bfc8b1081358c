package reports

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/database"
	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/ledger"
	"github.com/oakmont/folio/internal/modules/valuation"
)

type fixedPrices map[string]string

func (f fixedPrices) LatestPrice(symbol string) (decimal.Decimal, error) {
	return decimal.RequireFromString(f[symbol]), nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func at(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func setupReports(t *testing.T) (*Service, *engine.Engine) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ledger.InitSchema(db.Conn()))

	txRepo := ledger.NewTransactionRepository(db.Conn(), zerolog.Nop())
	cashRepo := ledger.NewCashRepository(db.Conn(), zerolog.Nop())
	eng := engine.New(txRepo, cashRepo, true, zerolog.Nop())
	val := valuation.NewService(eng, fixedPrices{"AAPL": "10"}, zerolog.Nop())

	return NewService(eng, val, txRepo, cashRepo, zerolog.Nop()), eng
}

func seed(t *testing.T, eng *engine.Engine) {
	t.Helper()

	_, err := eng.RecordCashEvent(ledger.CashEvent{
		ClientID: "acme", Kind: ledger.KindDeposit, Amount: d("1000"), ExecutedAt: at(1),
		Description: "Initial investment",
	})
	require.NoError(t, err)

	_, err = eng.RecordBuy(ledger.Transaction{
		ClientID: "acme", Symbol: "AAPL", Quantity: d("10"), Price: d("5"),
		Fees: decimal.Zero, ExecutedAt: at(2),
	})
	require.NoError(t, err)

	_, err = eng.RecordSell(ledger.Transaction{
		ClientID: "acme", Symbol: "AAPL", Quantity: d("4"), Price: d("8"),
		Fees: decimal.Zero, ExecutedAt: at(3),
	})
	require.NoError(t, err)
}

func TestRealizedPnL_Range(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	// Sell of 4 @ $8 against basis $5: gain 12, on day 3.
	full, err := svc.RealizedPnL("acme", at(1), at(30))
	require.NoError(t, err)
	assert.True(t, full.Equal(d("12")), "full range %s", full)

	before, err := svc.RealizedPnL("acme", at(1), at(2))
	require.NoError(t, err)
	assert.True(t, before.IsZero())

	after, err := svc.RealizedPnL("acme", at(4), at(30))
	require.NoError(t, err)
	assert.True(t, after.IsZero())
}

func TestRealizedPnL_FullRangeEqualsAllRealizedLots(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	lots, err := svc.RealizedLots("acme")
	require.NoError(t, err)

	sum := d("0")
	for _, r := range lots {
		sum = sum.Add(r.RealizedGain)
	}

	full, err := svc.RealizedPnL("acme", time.Time{}, at(31))
	require.NoError(t, err)
	assert.True(t, full.Equal(sum))
}

func TestLedgerView_RunningBalance(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	entries, err := svc.LedgerView("acme")
	require.NoError(t, err)

	// deposit, buy, settlement, sell, settlement
	require.Len(t, entries, 5)

	assert.Equal(t, "DEPOSIT", entries[0].Type)
	assert.True(t, entries[0].Balance.Equal(d("1000")))

	assert.Equal(t, "BUY", entries[1].Type)
	assert.Equal(t, "AAPL", entries[1].Symbol)
	assert.True(t, entries[1].Balance.Equal(d("1000")), "trade row does not move cash")

	assert.Equal(t, "TRADE_SETTLEMENT", entries[2].Type)
	assert.True(t, entries[2].Balance.Equal(d("950")))

	assert.Equal(t, "SELL", entries[3].Type)
	assert.Equal(t, "TRADE_SETTLEMENT", entries[4].Type)
	assert.True(t, entries[4].Balance.Equal(d("982")))

	// The view is a pure projection: a second read is identical.
	again, err := svc.LedgerView("acme")
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}

func TestLedgerView_FinalBalanceMatchesEngine(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	entries, err := svc.LedgerView("acme")
	require.NoError(t, err)
	state, err := eng.State("acme")
	require.NoError(t, err)

	assert.True(t, entries[len(entries)-1].Balance.Equal(state.CashBalance))
}

func TestSummary(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	summary, err := svc.Summary("acme")
	require.NoError(t, err)

	// 6 shares left at basis $5, priced at $10.
	assert.True(t, summary.CashBalance.Equal(d("982")))
	assert.True(t, summary.InvestedAmount.Equal(d("30")))
	assert.True(t, summary.CurrentValue.Equal(d("60")))
	assert.True(t, summary.RealizedPnL.Equal(d("12")))
	assert.True(t, summary.UnrealizedPnL.Equal(d("30")))
	assert.True(t, summary.TotalPnL.Equal(d("42")))
	require.Contains(t, summary.Holdings, "AAPL")
}

func TestAccountValueSeries(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	series, err := svc.AccountValueSeries("acme")
	require.NoError(t, err)

	require.Len(t, series, 3)
	assert.Equal(t, "2024-03-01", series[0].Date)
	assert.InDelta(t, 1000, series[0].Value, 1e-9)
	// Day 2: cash 950 + open basis 50.
	assert.InDelta(t, 1000, series[1].Value, 1e-9)
	// Day 3: cash 982 + open basis 30.
	assert.InDelta(t, 1012, series[2].Value, 1e-9)
}

func TestPerformanceReport(t *testing.T) {
	svc, eng := setupReports(t)
	seed(t, eng)

	perf, err := svc.PerformanceReport("acme", 0.0)
	require.NoError(t, err)

	assert.Equal(t, 3, perf.Days)
	assert.Len(t, perf.Series, 3)
	require.NotNil(t, perf.MaxDrawdown)
	assert.GreaterOrEqual(t, *perf.MaxDrawdown, 0.0)
	assert.InDelta(t, 0.006, perf.MeanDailyReturn, 0.01)
}
