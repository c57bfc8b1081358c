package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont/folio/internal/modules/alerts"
)

type stubSymbols struct {
	symbols []string
}

func (s *stubSymbols) AllHeldSymbols() ([]string, error) {
	return s.symbols, nil
}

type stubRefresher struct {
	refreshed [][]string
}

func (s *stubRefresher) RefreshAll(symbols []string) int {
	s.refreshed = append(s.refreshed, symbols)
	return len(symbols)
}

type stubEvaluator struct {
	calls int
}

func (s *stubEvaluator) EvaluateAll() ([]alerts.Status, error) {
	s.calls++
	return nil, nil
}

func TestPriceRefreshJob_RefreshesAndChecksAlerts(t *testing.T) {
	refresher := &stubRefresher{}
	evaluator := &stubEvaluator{}
	job := NewPriceRefreshJob(&stubSymbols{symbols: []string{"AAPL", "MSFT"}}, refresher, evaluator, zerolog.Nop())

	require.NoError(t, job.Run())

	require.Len(t, refresher.refreshed, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, refresher.refreshed[0])
	assert.Equal(t, 1, evaluator.calls)
}

func TestPriceRefreshJob_ChecksAlertsWithNothingHeld(t *testing.T) {
	refresher := &stubRefresher{}
	evaluator := &stubEvaluator{}
	job := NewPriceRefreshJob(&stubSymbols{}, refresher, evaluator, zerolog.Nop())

	require.NoError(t, job.Run())

	// Alerts can watch symbols no client holds, so evaluation still runs.
	assert.Empty(t, refresher.refreshed)
	assert.Equal(t, 1, evaluator.calls)
}
