package clients

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a tracked portfolio owner. The name doubles as the client id in
// the event stores and the API.
type Client struct {
	Name        string          `json:"name"`
	InitialCash decimal.Decimal `json:"initial_cash"`
	RiskProfile string          `json:"risk_profile"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Stats summarizes a client's activity counts.
type Stats struct {
	Transactions int `json:"transactions"`
	Instruments  int `json:"instruments"`
}
