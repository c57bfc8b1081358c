package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an open purchase, tracked until fully consumed by sells. Its ID is
// the id of the originating buy transaction, so replaying the same event log
// always regenerates the same lot identities.
type Lot struct {
	ID                int64           `json:"id"`
	ClientID          string          `json:"client_id"`
	Symbol            string          `json:"symbol"`
	OpenedAt          time.Time       `json:"opened_at"`
	Seq               int64           `json:"seq"`
	OriginalQuantity  decimal.Decimal `json:"original_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	CostBasisPerUnit  decimal.Decimal `json:"cost_basis_per_unit"`
}

// RealizedLot records one lot consumption by a sell. A sell spanning several
// open lots produces one record per lot consumed.
type RealizedLot struct {
	SellTransactionID int64           `json:"sell_transaction_id"`
	SourceLotID       int64           `json:"source_lot_id"`
	Symbol            string          `json:"symbol"`
	QuantityMatched   decimal.Decimal `json:"quantity_matched"`
	CostBasis         decimal.Decimal `json:"cost_basis"`
	Proceeds          decimal.Decimal `json:"proceeds"`
	RealizedGain      decimal.Decimal `json:"realized_gain"`
	SoldAt            time.Time       `json:"sold_at"`
	HoldingPeriod     time.Duration   `json:"holding_period"`
}

// ClientState is the full derived state of one client: open lots per
// instrument in FIFO order, every realized lot in sell order, and the cash
// balance. It is a pure projection of the event stores and is rebuilt from
// them on every read, never incrementally patched.
type ClientState struct {
	ClientID    string           `json:"client_id"`
	OpenLots    map[string][]Lot `json:"open_lots"`
	Realized    []RealizedLot    `json:"realized"`
	CashBalance decimal.Decimal  `json:"cash_balance"`
}

// OpenQuantity returns the total remaining quantity held for a symbol.
func (s *ClientState) OpenQuantity(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range s.OpenLots[symbol] {
		total = total.Add(lot.RemainingQuantity)
	}
	return total
}

// RealizedGainTotal sums realized gain across every realized lot.
func (s *ClientState) RealizedGainTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Realized {
		total = total.Add(r.RealizedGain)
	}
	return total
}
