package clients

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/ledger"
)

// AlertPurger removes a client's price alerts during the deletion cascade.
// The alerts repository implements it.
type AlertPurger interface {
	DeleteAllForClient(clientID string) error
}

// Service orchestrates client lifecycle: creation seeds the opening deposit,
// deletion cascades through the event stores and the client's alerts.
type Service struct {
	repo   *Repository
	engine *engine.Engine
	alerts AlertPurger
	log    zerolog.Logger
}

// NewService creates a new client service
func NewService(repo *Repository, eng *engine.Engine, alerts AlertPurger, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		engine: eng,
		alerts: alerts,
		log:    log.With().Str("service", "clients").Logger(),
	}
}

// Create registers a client and records the initial cash as an opening
// deposit so the balance is derivable from events alone.
func (s *Service) Create(client Client) (Client, error) {
	created, err := s.repo.Create(client)
	if err != nil {
		return Client{}, err
	}

	if created.InitialCash.IsPositive() {
		_, err := s.engine.RecordCashEvent(ledger.CashEvent{
			ClientID:    created.Name,
			Kind:        ledger.KindDeposit,
			Amount:      created.InitialCash,
			ExecutedAt:  created.CreatedAt,
			Description: "Initial investment",
		})
		if err != nil {
			// Roll the registry entry back so a failed seed does not leave
			// a client with untracked cash.
			_ = s.repo.Delete(created.Name)
			return Client{}, fmt.Errorf("failed to record opening deposit: %w", err)
		}
	}

	return created, nil
}

// Get returns a client by name.
func (s *Service) Get(name string) (Client, error) {
	return s.repo.Get(name)
}

// List returns all clients.
func (s *Service) List() ([]Client, error) {
	return s.repo.List()
}

// Delete removes the client and every event recorded for it.
func (s *Service) Delete(name string) error {
	if _, err := s.repo.Get(name); err != nil {
		return err
	}

	if err := s.engine.PurgeClient(name); err != nil {
		return fmt.Errorf("failed to purge client events: %w", err)
	}
	if err := s.alerts.DeleteAllForClient(name); err != nil {
		return fmt.Errorf("failed to purge client alerts: %w", err)
	}
	if err := s.repo.Delete(name); err != nil {
		return err
	}

	s.log.Info().Str("client", name).Time("at", time.Now()).Msg("Client and history removed")
	return nil
}
