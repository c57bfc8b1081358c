package alerts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert is a standing price watch for one client and symbol. Either bound
// may be unset; at least one must be present.
type Alert struct {
	ID            int64            `json:"id"`
	ClientID      string           `json:"client_id"`
	Symbol        string           `json:"symbol"`
	TargetPrice   *decimal.Decimal `json:"target_price,omitempty"`
	StopLossPrice *decimal.Decimal `json:"stop_loss_price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Status is an alert evaluated against the latest known price. CurrentPrice
// is nil when no quote is available, in which case neither bound can fire.
type Status struct {
	Alert
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	TargetHit    bool             `json:"target_hit"`
	StopLossHit  bool             `json:"stop_loss_hit"`
}

// Triggered reports whether either bound has fired.
func (s Status) Triggered() bool {
	return s.TargetHit || s.StopLossHit
}
