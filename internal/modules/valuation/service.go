package valuation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/engine"
)

// ErrPriceUnavailable marks a quote lookup failure. It is valuation-only and
// per-instrument: holdings for other instruments are unaffected.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceSource answers latest-price lookups. The pricing module implements it
// with a cache in front of the external quote service; tests use stubs.
type PriceSource interface {
	LatestPrice(symbol string) (decimal.Decimal, error)
}

// Holding is one instrument's position with valuation attached. MarketValue
// and UnrealizedGain are nil when the price lookup failed; PriceError then
// carries the reason instead of failing the whole query.
type Holding struct {
	Symbol           string           `json:"symbol"`
	Quantity         decimal.Decimal  `json:"quantity"`
	AverageCostBasis decimal.Decimal  `json:"average_cost_basis"`
	CostBasis        decimal.Decimal  `json:"cost_basis"`
	MarketValue      *decimal.Decimal `json:"market_value"`
	UnrealizedGain   *decimal.Decimal `json:"unrealized_gain"`
	PriceError       string           `json:"price_error,omitempty"`
}

// Service combines open lots with live prices into a holdings snapshot
type Service struct {
	engine *engine.Engine
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates a new valuation service
func NewService(eng *engine.Engine, prices PriceSource, log zerolog.Logger) *Service {
	return &Service{
		engine: eng,
		prices: prices,
		log:    log.With().Str("service", "valuation").Logger(),
	}
}

// Holdings returns the client's open positions with market values. Quantity
// is the sum of remaining lot quantities; the average cost basis weighs each
// lot's basis by its remaining quantity.
func (s *Service) Holdings(clientID string) (map[string]Holding, error) {
	state, err := s.engine.State(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive client state: %w", err)
	}

	holdings := make(map[string]Holding)
	for symbol, lots := range state.OpenLots {
		if len(lots) == 0 {
			continue
		}

		quantity := decimal.Zero
		cost := decimal.Zero
		for _, lot := range lots {
			quantity = quantity.Add(lot.RemainingQuantity)
			cost = cost.Add(lot.RemainingQuantity.Mul(lot.CostBasisPerUnit))
		}
		if quantity.IsZero() {
			continue
		}

		holding := Holding{
			Symbol:           symbol,
			Quantity:         quantity,
			AverageCostBasis: cost.Div(quantity),
			CostBasis:        cost,
		}

		price, err := s.prices.LatestPrice(symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price lookup failed, reporting without valuation")
			holding.PriceError = fmt.Errorf("%s: %w", symbol, ErrPriceUnavailable).Error()
		} else {
			value := quantity.Mul(price)
			gain := value.Sub(cost)
			holding.MarketValue = &value
			holding.UnrealizedGain = &gain
		}

		holdings[symbol] = holding
	}

	return holdings, nil
}

// Totals aggregates a holdings snapshot. Instruments without a price
// contribute their cost basis but no market value or unrealized gain.
type Totals struct {
	CostBasis      decimal.Decimal `json:"cost_basis"`
	MarketValue    decimal.Decimal `json:"market_value"`
	UnrealizedGain decimal.Decimal `json:"unrealized_gain"`
	Unpriced       []string        `json:"unpriced,omitempty"`
}

// Total sums holdings into portfolio-level figures.
func Total(holdings map[string]Holding) Totals {
	t := Totals{
		CostBasis:      decimal.Zero,
		MarketValue:    decimal.Zero,
		UnrealizedGain: decimal.Zero,
	}
	for symbol, h := range holdings {
		t.CostBasis = t.CostBasis.Add(h.CostBasis)
		if h.MarketValue == nil {
			t.Unpriced = append(t.Unpriced, symbol)
			continue
		}
		t.MarketValue = t.MarketValue.Add(*h.MarketValue)
		t.UnrealizedGain = t.UnrealizedGain.Add(*h.UnrealizedGain)
	}
	sort.Strings(t.Unpriced)
	return t
}
