package charts

import (
	"fmt"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/modules/pricing"
)

// Default SMA overlay windows, in trading days.
var smaWindows = []int{20, 50}

// HistorySource supplies stored daily closes for a symbol.
type HistorySource interface {
	DailyHistory(symbol string, limit int) ([]pricing.DailyPrice, error)
	DailyHistorySince(symbol, since string) ([]pricing.DailyPrice, error)
}

// Service builds price charts with moving-average overlays.
type Service struct {
	history HistorySource
	log     zerolog.Logger
}

func NewService(history HistorySource, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		log:     log.With().Str("service", "charts").Logger(),
	}
}

// PriceChart returns the close series for a symbol over a range (1M, 3M,
// 6M, 1Y, 5Y, 10Y; anything else means all stored history) with SMA
// overlays.
func (s *Service) PriceChart(symbol, dateRange string) (*Chart, error) {
	var (
		prices []pricing.DailyPrice
		err    error
	)
	if since := parseDateRange(dateRange); since != "" {
		prices, err = s.history.DailyHistorySince(symbol, since)
	} else {
		prices, err = s.history.DailyHistory(symbol, 10000)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", symbol, err)
	}

	chart := &Chart{
		Symbol: symbol,
		Range:  dateRange,
		Points: make([]Point, 0, len(prices)),
	}

	closes := make([]float64, 0, len(prices))
	for _, p := range prices {
		chart.Points = append(chart.Points, Point{Date: p.Date, Close: p.Close})
		closes = append(closes, p.Close)
	}

	for _, window := range smaWindows {
		chart.Overlays = append(chart.Overlays, smaOverlay(closes, window))
	}

	return chart, nil
}

// smaOverlay computes a simple moving average aligned with the input
// series. Values inside the warm-up window are nil.
func smaOverlay(closes []float64, window int) Overlay {
	overlay := Overlay{
		Name:   fmt.Sprintf("SMA%d", window),
		Values: make([]*float64, len(closes)),
	}
	if len(closes) < window {
		return overlay
	}

	sma := talib.Sma(closes, window)
	for i := window - 1; i < len(sma); i++ {
		v := sma[i]
		if v == v { // skip NaN
			overlay.Values[i] = &v
		}
	}
	return overlay
}

// parseDateRange converts a UI range label into a YYYY-MM-DD cutoff.
// Unknown labels mean no cutoff.
func parseDateRange(dateRange string) string {
	now := time.Now().UTC()

	var since time.Time
	switch dateRange {
	case "1M":
		since = now.AddDate(0, -1, 0)
	case "3M":
		since = now.AddDate(0, -3, 0)
	case "6M":
		since = now.AddDate(0, -6, 0)
	case "1Y":
		since = now.AddDate(-1, 0, 0)
	case "5Y":
		since = now.AddDate(-5, 0, 0)
	case "10Y":
		since = now.AddDate(-10, 0, 0)
	default:
		return ""
	}

	return since.Format("2006-01-02")
}
