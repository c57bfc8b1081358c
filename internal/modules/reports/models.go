package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/valuation"
)

// LedgerEntry is one row of the merged client ledger: trades and cash events
// interleaved by (executed_at, seq), each carrying the running cash balance
// computed left to right.
type LedgerEntry struct {
	ExecutedAt  time.Time        `json:"executed_at"`
	Seq         int64            `json:"seq"`
	Type        string           `json:"type"`
	Symbol      string           `json:"symbol,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Balance     decimal.Decimal  `json:"balance"`
	Description string           `json:"description,omitempty"`
}

// Summary is the portfolio-level rollup served to the dashboard.
type Summary struct {
	ClientID       string                       `json:"client_id"`
	CashBalance    decimal.Decimal              `json:"cash_balance"`
	InvestedAmount decimal.Decimal              `json:"invested_amount"`
	CurrentValue   decimal.Decimal              `json:"current_value"`
	RealizedPnL    decimal.Decimal              `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal              `json:"unrealized_pnl"`
	TotalPnL       decimal.Decimal              `json:"total_pnl"`
	Holdings       map[string]valuation.Holding `json:"holdings"`
	Unpriced       []string                     `json:"unpriced,omitempty"`
}

// Performance holds descriptive statistics over the client's daily account
// value (cash plus cost basis of open positions, derived per event day).
type Performance struct {
	ClientID             string       `json:"client_id"`
	Days                 int          `json:"days"`
	MeanDailyReturn      float64      `json:"mean_daily_return"`
	AnnualizedVolatility float64      `json:"annualized_volatility"`
	MaxDrawdown          *float64     `json:"max_drawdown,omitempty"`
	SharpeRatio          *float64     `json:"sharpe_ratio,omitempty"`
	Series               []ValuePoint `json:"series"`
}

// ValuePoint is one day of the account value series.
type ValuePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}
