package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/modules/alerts"
)

// SymbolSource lists the instruments currently held by any client.
type SymbolSource interface {
	AllHeldSymbols() ([]string, error)
}

// QuoteRefresher refreshes cached quotes for a set of symbols.
type QuoteRefresher interface {
	RefreshAll(symbols []string) int
}

// AlertEvaluator reports the alerts whose price bound has been crossed.
type AlertEvaluator interface {
	EvaluateAll() ([]alerts.Status, error)
}

// PriceRefreshJob keeps the quote cache current for every held symbol and
// evaluates price alerts against the refreshed quotes.
type PriceRefreshJob struct {
	log     zerolog.Logger
	symbols SymbolSource
	pricing QuoteRefresher
	alerts  AlertEvaluator
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(symbols SymbolSource, pricing QuoteRefresher, alerts AlertEvaluator, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		log:     log.With().Str("job", "price_refresh").Logger(),
		symbols: symbols,
		pricing: pricing,
		alerts:  alerts,
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run refreshes quotes for all held symbols, then checks the alerts
func (j *PriceRefreshJob) Run() error {
	symbols, err := j.symbols.AllHeldSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No held symbols, nothing to refresh")
		return j.checkAlerts()
	}

	refreshed := j.pricing.RefreshAll(symbols)
	j.log.Info().
		Int("symbols", len(symbols)).
		Int("refreshed", refreshed).
		Msg("Quote refresh cycle complete")

	return j.checkAlerts()
}

func (j *PriceRefreshJob) checkAlerts() error {
	triggered, err := j.alerts.EvaluateAll()
	if err != nil {
		return err
	}

	for _, status := range triggered {
		event := j.log.Warn().
			Str("client", status.ClientID).
			Str("symbol", status.Symbol).
			Str("price", status.CurrentPrice.String())
		if status.TargetHit {
			event = event.Str("target", status.TargetPrice.String())
		}
		if status.StopLossHit {
			event = event.Str("stop_loss", status.StopLossPrice.String())
		}
		event.Msg("Price alert triggered")
	}
	return nil
}
