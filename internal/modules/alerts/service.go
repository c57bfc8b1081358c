package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidAlert is returned when an alert fails validation.
var ErrInvalidAlert = errors.New("invalid alert")

// PriceSource answers latest-price lookups. The pricing module implements it.
type PriceSource interface {
	LatestPrice(symbol string) (decimal.Decimal, error)
}

// Service stores price alerts and evaluates them against current quotes.
// A target fires when the price reaches or exceeds it, a stop loss fires
// when the price falls to or below it.
type Service struct {
	repo   *Repository
	prices PriceSource
	log    zerolog.Logger
}

// NewService creates a new alerts service
func NewService(repo *Repository, prices PriceSource, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		prices: prices,
		log:    log.With().Str("service", "alerts").Logger(),
	}
}

// Set validates and stores a new alert.
func (s *Service) Set(alert Alert) (Alert, error) {
	alert.Symbol = strings.ToUpper(strings.TrimSpace(alert.Symbol))
	if alert.Symbol == "" {
		return Alert{}, fmt.Errorf("symbol is required: %w", ErrInvalidAlert)
	}
	if alert.TargetPrice == nil && alert.StopLossPrice == nil {
		return Alert{}, fmt.Errorf("client %s, %s: needs a target price or a stop loss: %w",
			alert.ClientID, alert.Symbol, ErrInvalidAlert)
	}
	if alert.TargetPrice != nil && !alert.TargetPrice.IsPositive() {
		return Alert{}, fmt.Errorf("client %s, %s: target price %s must be positive: %w",
			alert.ClientID, alert.Symbol, alert.TargetPrice.String(), ErrInvalidAlert)
	}
	if alert.StopLossPrice != nil && !alert.StopLossPrice.IsPositive() {
		return Alert{}, fmt.Errorf("client %s, %s: stop loss %s must be positive: %w",
			alert.ClientID, alert.Symbol, alert.StopLossPrice.String(), ErrInvalidAlert)
	}

	return s.repo.Create(alert)
}

// ListForClient returns the client's alerts, each evaluated against the
// latest known price.
func (s *Service) ListForClient(clientID string) ([]Status, error) {
	list, err := s.repo.ListByClient(clientID)
	if err != nil {
		return nil, err
	}
	return s.evaluate(list), nil
}

// Delete removes one alert.
func (s *Service) Delete(clientID string, id int64) error {
	return s.repo.Delete(clientID, id)
}

// EvaluateAll scans every stored alert and returns the ones whose bound has
// been crossed. The scheduled price refresh runs it after each quote cycle.
func (s *Service) EvaluateAll() ([]Status, error) {
	list, err := s.repo.ListAll()
	if err != nil {
		return nil, err
	}

	var triggered []Status
	for _, status := range s.evaluate(list) {
		if status.Triggered() {
			triggered = append(triggered, status)
		}
	}
	return triggered, nil
}

func (s *Service) evaluate(list []Alert) []Status {
	statuses := make([]Status, 0, len(list))
	for _, alert := range list {
		status := Status{Alert: alert}

		price, err := s.prices.LatestPrice(alert.Symbol)
		if err != nil {
			s.log.Warn().Err(err).
				Str("client", alert.ClientID).
				Str("symbol", alert.Symbol).
				Msg("No price available for alert")
			statuses = append(statuses, status)
			continue
		}

		status.CurrentPrice = &price
		status.TargetHit = alert.TargetPrice != nil && price.GreaterThanOrEqual(*alert.TargetPrice)
		status.StopLossHit = alert.StopLossPrice != nil && price.LessThanOrEqual(*alert.StopLossPrice)
		statuses = append(statuses, status)
	}
	return statuses
}
