package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/ledger"
)

// Replay derives a client's full state from its ordered event streams.
// It is a pure function: the same events always produce the same lots,
// realized gains and balance. Back-dated insertions are handled by
// appending the event and replaying, no incremental patching.
//
// Events are ordered by (executed_at, seq) ascending before matching, so
// the result does not depend on the caller's ordering.
func Replay(clientID string, txns []ledger.Transaction, cash []ledger.CashEvent) (*ClientState, error) {
	ordered := make([]ledger.Transaction, len(txns))
	copy(ordered, txns)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExecutedAt.Equal(ordered[j].ExecutedAt) {
			return ordered[i].ExecutedAt.Before(ordered[j].ExecutedAt)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	state := &ClientState{
		ClientID:    clientID,
		OpenLots:    make(map[string][]Lot),
		CashBalance: decimal.Zero,
	}

	for _, txn := range ordered {
		switch txn.Side {
		case ledger.SideBuy:
			state.OpenLots[txn.Symbol] = append(state.OpenLots[txn.Symbol], lotFromBuy(txn))
		case ledger.SideSell:
			remaining, realized, err := matchSell(state.OpenLots[txn.Symbol], txn)
			if err != nil {
				return nil, err
			}
			state.OpenLots[txn.Symbol] = remaining
			state.Realized = append(state.Realized, realized...)
		}
	}

	for _, event := range cash {
		state.CashBalance = state.CashBalance.Add(event.Amount)
	}

	return state, nil
}

// lotFromBuy opens a lot with the buy's fee folded into the cost basis:
// cost_basis_per_unit = (price*quantity + fees) / quantity.
func lotFromBuy(txn ledger.Transaction) Lot {
	basis := txn.GrossValue().Add(txn.Fees).Div(txn.Quantity)
	return Lot{
		ID:                txn.ID,
		ClientID:          txn.ClientID,
		Symbol:            txn.Symbol,
		OpenedAt:          txn.ExecutedAt,
		Seq:               txn.Seq,
		OriginalQuantity:  txn.Quantity,
		RemainingQuantity: txn.Quantity,
		CostBasisPerUnit:  basis,
	}
}

// matchSell consumes open lots oldest-first until the sell quantity is fully
// matched. All-or-nothing: if the open quantity cannot cover the sell, it
// returns ErrInsufficientHoldings and the input lots are untouched.
//
// The sell's fee is pro-rated across realized lots by quantity matched, so
// proceeds per lot = price*matched - fees*(matched/sellQuantity).
func matchSell(open []Lot, sell ledger.Transaction) ([]Lot, []RealizedLot, error) {
	available := decimal.Zero
	for _, lot := range open {
		available = available.Add(lot.RemainingQuantity)
	}
	if available.LessThan(sell.Quantity) {
		return nil, nil, insufficientHoldings(sell.ClientID, sell.Symbol,
			sell.Quantity.String(), available.String())
	}

	var remaining []Lot
	var realized []RealizedLot
	needed := sell.Quantity

	for _, lot := range open {
		if needed.IsZero() {
			remaining = append(remaining, lot)
			continue
		}

		matched := decimal.Min(lot.RemainingQuantity, needed)
		feeShare := sell.Fees.Mul(matched).Div(sell.Quantity)
		proceeds := sell.Price.Mul(matched).Sub(feeShare)
		costBasis := lot.CostBasisPerUnit.Mul(matched)

		realized = append(realized, RealizedLot{
			SellTransactionID: sell.ID,
			SourceLotID:       lot.ID,
			Symbol:            sell.Symbol,
			QuantityMatched:   matched,
			CostBasis:         costBasis,
			Proceeds:          proceeds,
			RealizedGain:      proceeds.Sub(costBasis),
			SoldAt:            sell.ExecutedAt,
			HoldingPeriod:     sell.ExecutedAt.Sub(lot.OpenedAt),
		})

		needed = needed.Sub(matched)
		left := lot.RemainingQuantity.Sub(matched)
		if left.IsPositive() {
			// Partially consumed lots persist with reduced quantity.
			lot.RemainingQuantity = left
			remaining = append(remaining, lot)
		}
	}

	return remaining, realized, nil
}
