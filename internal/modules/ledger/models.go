package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// CashEventKind classifies a cash ledger entry.
type CashEventKind string

const (
	// KindDeposit and KindWithdrawal are entered directly by the user.
	KindDeposit    CashEventKind = "DEPOSIT"
	KindWithdrawal CashEventKind = "WITHDRAWAL"
	// KindTradeSettlement entries are derived, written 1:1 with each trade.
	KindTradeSettlement CashEventKind = "TRADE_SETTLEMENT"
)

// Transaction is an immutable buy/sell event in the append-only store.
// Quantity is always positive; Side carries the direction. Seq is a
// per-client tie-breaker so same-timestamp events replay deterministically.
type Transaction struct {
	ID         int64           `json:"id"`
	ClientID   string          `json:"client_id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fees       decimal.Decimal `json:"fees"`
	ExecutedAt time.Time       `json:"executed_at"`
	Seq        int64           `json:"seq"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// GrossValue returns quantity * price, before fees.
func (t Transaction) GrossValue() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// SettlementAmount is the signed cash effect of the trade:
// buys consume cash including fees, sells release proceeds net of fees.
func (t Transaction) SettlementAmount() decimal.Decimal {
	if t.Side == SideBuy {
		return t.GrossValue().Add(t.Fees).Neg()
	}
	return t.GrossValue().Sub(t.Fees)
}

// CashEvent is an immutable cash ledger entry. Amount is signed: positive
// increases the client's cash balance.
type CashEvent struct {
	ID                  int64           `json:"id"`
	ClientID            string          `json:"client_id"`
	Kind                CashEventKind   `json:"kind"`
	Amount              decimal.Decimal `json:"amount"`
	ExecutedAt          time.Time       `json:"executed_at"`
	Seq                 int64           `json:"seq"`
	LinkedTransactionID *int64          `json:"linked_transaction_id,omitempty"`
	Description         string          `json:"description,omitempty"`
	CreatedAt           time.Time       `json:"created_at,omitempty"`
}
