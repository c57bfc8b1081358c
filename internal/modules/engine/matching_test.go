package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/modules/ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(day int) time.Time {
	return time.Date(2024, 1, day, 10, 0, 0, 0, time.UTC)
}

func trade(id int64, side ledger.Side, qty, price, fees string, day int, seq int64) ledger.Transaction {
	return ledger.Transaction{
		ID:         id,
		ClientID:   "acme",
		Symbol:     "AAPL",
		Side:       side,
		Quantity:   d(qty),
		Price:      d(price),
		Fees:       d(fees),
		ExecutedAt: at(day),
		Seq:        seq,
	}
}

func TestReplay_FIFOCostBasis(t *testing.T) {
	// Buys of 10@$1 then 10@$2, sell 15: cost basis 10*1 + 5*2 = 20,
	// one open lot of 5@$2 left.
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0", 1, 1),
		trade(2, ledger.SideBuy, "10", "2", "0", 2, 2),
		trade(3, ledger.SideSell, "15", "3", "0", 3, 3),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)

	require.Len(t, state.Realized, 2)
	totalCost := state.Realized[0].CostBasis.Add(state.Realized[1].CostBasis)
	assert.True(t, totalCost.Equal(d("20")), "cost basis %s", totalCost)

	open := state.OpenLots["AAPL"]
	require.Len(t, open, 1)
	assert.True(t, open[0].RemainingQuantity.Equal(d("5")))
	assert.True(t, open[0].CostBasisPerUnit.Equal(d("2")))
	assert.Equal(t, int64(2), open[0].ID, "remaining lot must be the second buy")

	// Sum of quantity matched equals the sell quantity.
	matched := state.Realized[0].QuantityMatched.Add(state.Realized[1].QuantityMatched)
	assert.True(t, matched.Equal(d("15")))

	// Realized gain: proceeds 15*3 = 45, cost 20, gain 25.
	assert.True(t, state.RealizedGainTotal().Equal(d("25")))
}

func TestReplay_QuantityConservation(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "5", "0", 1, 1),
		trade(2, ledger.SideBuy, "7", "6", "0", 2, 2),
		trade(3, ledger.SideSell, "4", "7", "0", 3, 3),
		trade(4, ledger.SideBuy, "3", "8", "0", 4, 4),
		trade(5, ledger.SideSell, "9", "9", "0", 5, 5),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)

	// bought 20, sold 13
	assert.True(t, state.OpenQuantity("AAPL").Equal(d("7")))
	for _, lot := range state.OpenLots["AAPL"] {
		assert.False(t, lot.RemainingQuantity.IsNegative())
	}
}

func TestReplay_OversellRejected(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "5", "1", "0", 1, 1),
		trade(2, ledger.SideSell, "6", "1", "0", 2, 2),
	}

	_, err := Replay("acme", txns, nil)
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
}

func TestReplay_SellWithNoHoldings(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideSell, "1", "1", "0", 1, 1),
	}

	_, err := Replay("acme", txns, nil)
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
}

func TestReplay_SameDayTieBreakBySeq(t *testing.T) {
	// Two buys at the same timestamp: FIFO must consume seq 1 first.
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0", 1, 1),
		trade(2, ledger.SideBuy, "10", "2", "0", 1, 2),
		trade(3, ledger.SideSell, "10", "5", "0", 2, 3),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)

	require.Len(t, state.Realized, 1)
	assert.Equal(t, int64(1), state.Realized[0].SourceLotID)
	require.Len(t, state.OpenLots["AAPL"], 1)
	assert.Equal(t, int64(2), state.OpenLots["AAPL"][0].ID)
}

func TestReplay_BuyFeeFoldedIntoCostBasis(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "10", "5", 1, 1),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)

	// (10*10 + 5) / 10 = 10.5
	lot := state.OpenLots["AAPL"][0]
	assert.True(t, lot.CostBasisPerUnit.Equal(d("10.5")), "basis %s", lot.CostBasisPerUnit)
}

func TestReplay_SellFeeProRatedByQuantity(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0", 1, 1),
		trade(2, ledger.SideBuy, "10", "1", "0", 2, 2),
		trade(3, ledger.SideSell, "15", "2", "3", 3, 3),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)
	require.Len(t, state.Realized, 2)

	// Fee 3 split 10/15 and 5/15: 2 and 1.
	first, second := state.Realized[0], state.Realized[1]
	assert.True(t, first.Proceeds.Equal(d("18")), "first proceeds %s", first.Proceeds)  // 10*2 - 2
	assert.True(t, second.Proceeds.Equal(d("9")), "second proceeds %s", second.Proceeds) // 5*2 - 1
	assert.True(t, first.Proceeds.Add(second.Proceeds).Equal(d("27")))                   // 15*2 - 3
}

func TestReplay_SellExactlyExhaustsLastLot(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0", 1, 1),
		trade(2, ledger.SideSell, "10", "2", "0", 2, 2),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)

	assert.Empty(t, state.OpenLots["AAPL"])
	require.Len(t, state.Realized, 1)
	assert.True(t, state.Realized[0].RealizedGain.Equal(d("10")))
}

func TestReplay_HoldingPeriod(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "1", "1", "0", 1, 1),
		trade(2, ledger.SideSell, "1", "1", "0", 8, 2),
	}

	state, err := Replay("acme", txns, nil)
	require.NoError(t, err)
	require.Len(t, state.Realized, 1)
	assert.Equal(t, 7*24*time.Hour, state.Realized[0].HoldingPeriod)
}

func TestReplay_OrderIndependentOfInputSlice(t *testing.T) {
	ordered := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0", 1, 1),
		trade(2, ledger.SideBuy, "10", "2", "0", 2, 2),
		trade(3, ledger.SideSell, "15", "3", "0", 3, 3),
	}
	shuffled := []ledger.Transaction{ordered[2], ordered[0], ordered[1]}

	a, err := Replay("acme", ordered, nil)
	require.NoError(t, err)
	b, err := Replay("acme", shuffled, nil)
	require.NoError(t, err)

	assert.True(t, a.RealizedGainTotal().Equal(b.RealizedGainTotal()))
	assert.True(t, a.OpenQuantity("AAPL").Equal(b.OpenQuantity("AAPL")))
}

func TestReplay_Idempotent(t *testing.T) {
	txns := []ledger.Transaction{
		trade(1, ledger.SideBuy, "10", "1", "0.5", 1, 1),
		trade(2, ledger.SideSell, "4", "2", "0.25", 2, 2),
		trade(3, ledger.SideBuy, "2", "3", "0", 3, 3),
	}
	cash := []ledger.CashEvent{
		{ClientID: "acme", Kind: ledger.KindDeposit, Amount: d("1000"), ExecutedAt: at(1), Seq: 1},
		{ClientID: "acme", Kind: ledger.KindWithdrawal, Amount: d("-50"), ExecutedAt: at(2), Seq: 2},
	}

	a, err := Replay("acme", txns, cash)
	require.NoError(t, err)
	b, err := Replay("acme", txns, cash)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, a.CashBalance.Equal(d("950")))
}

func TestReplay_BackDatedBuyReattributesSell(t *testing.T) {
	// Without the back-dated buy the sell is invalid.
	sellOnly := []ledger.Transaction{
		trade(2, ledger.SideBuy, "5", "1", "0", 1, 1),
		trade(3, ledger.SideSell, "10", "1", "0", 2, 2),
	}
	_, err := Replay("acme", sellOnly, nil)
	require.ErrorIs(t, err, ErrInsufficientHoldings)

	// Insert a buy dated before everything (higher seq: appended later).
	withBackdated := append(sellOnly, func() ledger.Transaction {
		txn := trade(9, ledger.SideBuy, "5", "1", "0", 1, 3)
		txn.ExecutedAt = at(1).Add(-24 * time.Hour)
		return txn
	}())

	state, err := Replay("acme", withBackdated, nil)
	require.NoError(t, err)

	// Sold 10 at $1 against 10 bought at $1: zero gain, nothing open.
	assert.True(t, state.RealizedGainTotal().IsZero())
	assert.True(t, state.OpenQuantity("AAPL").IsZero())

	// The back-dated lot must have been consumed first.
	require.Len(t, state.Realized, 2)
	assert.Equal(t, int64(9), state.Realized[0].SourceLotID)
	assert.Equal(t, int64(2), state.Realized[1].SourceLotID)
}
