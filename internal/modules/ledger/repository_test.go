package ledger

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/database"
)

func setupRepos(t *testing.T) (*TransactionRepository, *CashRepository) {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, InitSchema(db.Conn()))

	log := zerolog.Nop()
	return NewTransactionRepository(db.Conn(), log), NewCashRepository(db.Conn(), log)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
}

func TestAppendWithSettlement_WritesBothRows(t *testing.T) {
	txRepo, cashRepo := setupRepos(t)

	stored, err := txRepo.AppendWithSettlement(Transaction{
		ClientID:   "alice",
		Symbol:     "AAPL",
		Side:       SideBuy,
		Quantity:   dec("10"),
		Price:      dec("100"),
		Fees:       dec("5"),
		ExecutedAt: day(2),
	})
	require.NoError(t, err)
	assert.NotZero(t, stored.ID)
	assert.Equal(t, int64(1), stored.Seq)

	events, err := cashRepo.ListByClient("alice")
	require.NoError(t, err)
	require.Len(t, events, 1)

	settlement := events[0]
	assert.Equal(t, KindTradeSettlement, settlement.Kind)
	assert.True(t, settlement.Amount.Equal(dec("-1005")), "amount = %s", settlement.Amount)
	require.NotNil(t, settlement.LinkedTransactionID)
	assert.Equal(t, stored.ID, *settlement.LinkedTransactionID)
	assert.Contains(t, settlement.Description, "Purchase of 10 AAPL")
	// Settlement follows the trade in replay order.
	assert.Equal(t, stored.Seq+1, settlement.Seq)
}

func TestAppendWithSettlement_SellReleasesNetProceeds(t *testing.T) {
	txRepo, cashRepo := setupRepos(t)

	_, err := txRepo.AppendWithSettlement(Transaction{
		ClientID: "alice", Symbol: "AAPL", Side: SideSell,
		Quantity: dec("4"), Price: dec("8"), Fees: dec("1"), ExecutedAt: day(3),
	})
	require.NoError(t, err)

	events, err := cashRepo.ListByClient("alice")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Amount.Equal(dec("31")))
	assert.Contains(t, events[0].Description, "Sale of 4 AAPL")
}

func TestSeq_IsPerClient(t *testing.T) {
	txRepo, _ := setupRepos(t)

	a1, err := txRepo.AppendWithSettlement(Transaction{
		ClientID: "alice", Symbol: "AAPL", Side: SideBuy,
		Quantity: dec("1"), Price: dec("1"), Fees: decimal.Zero, ExecutedAt: day(1),
	})
	require.NoError(t, err)

	b1, err := txRepo.AppendWithSettlement(Transaction{
		ClientID: "bob", Symbol: "AAPL", Side: SideBuy,
		Quantity: dec("1"), Price: dec("1"), Fees: decimal.Zero, ExecutedAt: day(1),
	})
	require.NoError(t, err)

	// Each client's counter starts at 1 regardless of the other's activity.
	assert.Equal(t, int64(1), a1.Seq)
	assert.Equal(t, int64(1), b1.Seq)
}

func TestListByClient_OrderedByTimeThenSeq(t *testing.T) {
	txRepo, _ := setupRepos(t)

	// Inserted out of chronological order.
	for _, d := range []int{5, 2, 8} {
		_, err := txRepo.AppendWithSettlement(Transaction{
			ClientID: "alice", Symbol: "AAPL", Side: SideBuy,
			Quantity: dec("1"), Price: decimal.NewFromInt(int64(d)), Fees: decimal.Zero,
			ExecutedAt: day(d),
		})
		require.NoError(t, err)
	}

	txns, err := txRepo.ListByClient("alice")
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.True(t, txns[0].ExecutedAt.Before(txns[1].ExecutedAt))
	assert.True(t, txns[1].ExecutedAt.Before(txns[2].ExecutedAt))
}

func TestCashAppend_RejectsSettlementKind(t *testing.T) {
	_, cashRepo := setupRepos(t)

	_, err := cashRepo.Append(CashEvent{
		ClientID: "alice", Kind: KindTradeSettlement,
		Amount: dec("10"), ExecutedAt: day(1),
	})
	require.Error(t, err)
}

func TestBalance_AsOfFiltersLaterEvents(t *testing.T) {
	_, cashRepo := setupRepos(t)

	_, err := cashRepo.Append(CashEvent{
		ClientID: "alice", Kind: KindDeposit,
		Amount: dec("1000"), ExecutedAt: day(1),
	})
	require.NoError(t, err)

	// Amounts are stored signed; withdrawals are negative.
	_, err = cashRepo.Append(CashEvent{
		ClientID: "alice", Kind: KindWithdrawal,
		Amount: dec("-200"), ExecutedAt: day(5),
	})
	require.NoError(t, err)

	balance, err := cashRepo.Balance("alice", day(3))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1000")))

	balance, err = cashRepo.Balance("alice", day(6))
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("800")))
}

func TestAllHeldSymbols_Deduplicates(t *testing.T) {
	txRepo, _ := setupRepos(t)

	seed := []struct {
		client, symbol string
	}{
		{"alice", "AAPL"}, {"alice", "MSFT"}, {"bob", "AAPL"},
	}
	for _, s := range seed {
		_, err := txRepo.AppendWithSettlement(Transaction{
			ClientID: s.client, Symbol: s.symbol, Side: SideBuy,
			Quantity: dec("1"), Price: dec("1"), Fees: decimal.Zero, ExecutedAt: day(1),
		})
		require.NoError(t, err)
	}

	symbols, err := txRepo.AllHeldSymbols()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestDeleteAllForClient_LeavesOthersAlone(t *testing.T) {
	txRepo, cashRepo := setupRepos(t)

	for _, client := range []string{"alice", "bob"} {
		_, err := txRepo.AppendWithSettlement(Transaction{
			ClientID: client, Symbol: "AAPL", Side: SideBuy,
			Quantity: dec("1"), Price: dec("1"), Fees: decimal.Zero, ExecutedAt: day(1),
		})
		require.NoError(t, err)
	}

	require.NoError(t, txRepo.DeleteAllForClient("alice"))

	count, err := txRepo.Count("alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	events, err := cashRepo.ListByClient("alice")
	require.NoError(t, err)
	assert.Empty(t, events)

	count, err = txRepo.Count("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
