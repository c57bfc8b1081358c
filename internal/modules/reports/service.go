package reports

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/ledger"
	"github.com/oakmont/folio/internal/modules/valuation"
	"github.com/oakmont/folio/pkg/formulas"
)

// Service answers the reconciliation and reporting queries. Everything here
// is a pure projection over the event stores: no report keeps state of its
// own, so a report can never disagree with the ledger it was derived from.
type Service struct {
	engine    *engine.Engine
	valuation *valuation.Service
	txRepo    *ledger.TransactionRepository
	cashRepo  *ledger.CashRepository
	log       zerolog.Logger
}

// NewService creates a new reports service
func NewService(
	eng *engine.Engine,
	val *valuation.Service,
	txRepo *ledger.TransactionRepository,
	cashRepo *ledger.CashRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		engine:    eng,
		valuation: val,
		txRepo:    txRepo,
		cashRepo:  cashRepo,
		log:       log.With().Str("service", "reports").Logger(),
	}
}

// RealizedPnL sums realized gain over sells whose timestamp falls in
// [from, to] inclusive.
func (s *Service) RealizedPnL(clientID string, from, to time.Time) (decimal.Decimal, error) {
	state, err := s.engine.State(clientID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to derive client state: %w", err)
	}

	total := decimal.Zero
	for _, r := range state.Realized {
		if r.SoldAt.Before(from) || r.SoldAt.After(to) {
			continue
		}
		total = total.Add(r.RealizedGain)
	}
	return total, nil
}

// RealizedLots returns every realized lot for the client in sell order.
func (s *Service) RealizedLots(clientID string) ([]engine.RealizedLot, error) {
	state, err := s.engine.State(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive client state: %w", err)
	}
	return state.Realized, nil
}

// LedgerView merges trades and cash events into one chronological view with
// a running cash balance. Trade rows carry their instrument details; the
// cash effect of a trade shows up on its settlement row, so the running
// balance moves exactly once per trade.
func (s *Service) LedgerView(clientID string) ([]LedgerEntry, error) {
	txns, err := s.txRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	events, err := s.cashRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash events: %w", err)
	}

	entries := make([]LedgerEntry, 0, len(txns)+len(events))
	for _, txn := range txns {
		quantity := txn.Quantity
		price := txn.Price
		entries = append(entries, LedgerEntry{
			ExecutedAt: txn.ExecutedAt,
			Seq:        txn.Seq,
			Type:       string(txn.Side),
			Symbol:     txn.Symbol,
			Quantity:   &quantity,
			Price:      &price,
			Amount:     decimal.Zero,
		})
	}
	for _, event := range events {
		entries = append(entries, LedgerEntry{
			ExecutedAt:  event.ExecutedAt,
			Seq:         event.Seq,
			Type:        string(event.Kind),
			Amount:      event.Amount,
			Description: event.Description,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ExecutedAt.Equal(entries[j].ExecutedAt) {
			return entries[i].ExecutedAt.Before(entries[j].ExecutedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})

	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].Amount)
		entries[i].Balance = balance
	}

	return entries, nil
}

// Summary rolls up cash, holdings, realized and unrealized P&L for the
// dashboard. Unpriced instruments are listed rather than failing the rollup.
func (s *Service) Summary(clientID string) (Summary, error) {
	state, err := s.engine.State(clientID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to derive client state: %w", err)
	}

	holdings, err := s.valuation.Holdings(clientID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to value holdings: %w", err)
	}

	totals := valuation.Total(holdings)
	realized := state.RealizedGainTotal()

	return Summary{
		ClientID:       clientID,
		CashBalance:    state.CashBalance,
		InvestedAmount: totals.CostBasis,
		CurrentValue:   totals.MarketValue,
		RealizedPnL:    realized,
		UnrealizedPnL:  totals.UnrealizedGain,
		TotalPnL:       realized.Add(totals.UnrealizedGain),
		Holdings:       holdings,
		Unpriced:       totals.Unpriced,
	}, nil
}

// AccountValueSeries derives the client's daily account value: cash balance
// plus cost basis of open positions at the end of each day with activity.
// Prices do not enter the series, so it is fully reproducible from events.
func (s *Service) AccountValueSeries(clientID string) ([]ValuePoint, error) {
	txns, err := s.txRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	events, err := s.cashRepo.ListByClient(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cash events: %w", err)
	}

	daySet := make(map[string]bool)
	for _, txn := range txns {
		daySet[txn.ExecutedAt.UTC().Format("2006-01-02")] = true
	}
	for _, event := range events {
		daySet[event.ExecutedAt.UTC().Format("2006-01-02")] = true
	}

	days := make([]string, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]ValuePoint, 0, len(days))
	for _, day := range days {
		cutoff, _ := time.Parse("2006-01-02", day)
		cutoff = cutoff.Add(24*time.Hour - time.Nanosecond)

		state, err := engine.Replay(clientID, upTo(txns, cutoff), cashUpTo(events, cutoff))
		if err != nil {
			return nil, fmt.Errorf("failed to replay through %s: %w", day, err)
		}

		value := state.CashBalance
		for _, lots := range state.OpenLots {
			for _, lot := range lots {
				value = value.Add(lot.RemainingQuantity.Mul(lot.CostBasisPerUnit))
			}
		}
		series = append(series, ValuePoint{Date: day, Value: value.InexactFloat64()})
	}

	return series, nil
}

// PerformanceReport computes return statistics over the account value series.
func (s *Service) PerformanceReport(clientID string, riskFreeRate float64) (Performance, error) {
	series, err := s.AccountValueSeries(clientID)
	if err != nil {
		return Performance{}, err
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	returns := formulas.Returns(values)

	return Performance{
		ClientID:             clientID,
		Days:                 len(series),
		MeanDailyReturn:      formulas.Mean(returns),
		AnnualizedVolatility: formulas.AnnualizedVolatility(returns),
		MaxDrawdown:          formulas.MaxDrawdown(values),
		SharpeRatio:          formulas.SharpeRatio(returns, riskFreeRate, 252),
		Series:               series,
	}, nil
}

func upTo(txns []ledger.Transaction, cutoff time.Time) []ledger.Transaction {
	var out []ledger.Transaction
	for _, t := range txns {
		if !t.ExecutedAt.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func cashUpTo(events []ledger.CashEvent, cutoff time.Time) []ledger.CashEvent {
	var out []ledger.CashEvent
	for _, e := range events {
		if !e.ExecutedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
