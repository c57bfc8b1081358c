package clients

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrAlreadyExists is returned when creating a client whose name is taken.
var ErrAlreadyExists = errors.New("client already exists")

// ErrNotFound is returned for lookups of unknown clients.
var ErrNotFound = errors.New("client not found")

// Schema creates the client registry table.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
    name TEXT PRIMARY KEY,
    initial_cash TEXT NOT NULL DEFAULT '0',
    risk_profile TEXT NOT NULL DEFAULT 'Moderate',
    created_at TEXT NOT NULL
);
`

// InitSchema ensures the clients table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Repository handles client registry persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new client repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "clients").Logger(),
	}
}

// Create inserts a new client.
func (r *Repository) Create(client Client) (Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return Client{}, fmt.Errorf("client name is required")
	}
	if client.RiskProfile == "" {
		client.RiskProfile = "Moderate"
	}
	client.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO clients (name, initial_cash, risk_profile, created_at)
		VALUES (?, ?, ?, ?)
	`,
		client.Name,
		client.InitialCash.String(),
		client.RiskProfile,
		client.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY KEY") {
			return Client{}, fmt.Errorf("%q: %w", client.Name, ErrAlreadyExists)
		}
		return Client{}, fmt.Errorf("failed to create client: %w", err)
	}

	r.log.Info().Str("client", client.Name).Msg("Client created")
	return client, nil
}

// Get retrieves a client by name.
func (r *Repository) Get(name string) (Client, error) {
	row := r.db.QueryRow(`
		SELECT name, initial_cash, risk_profile, created_at FROM clients WHERE name = ?
	`, name)

	client, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Client{}, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// List returns all clients ordered by name.
func (r *Repository) List() ([]Client, error) {
	rows, err := r.db.Query(`
		SELECT name, initial_cash, risk_profile, created_at FROM clients ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var result []Client
	for rows.Next() {
		var client Client
		var initialCash, createdAt string
		if err := rows.Scan(&client.Name, &initialCash, &client.RiskProfile, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if client.InitialCash, err = decimal.NewFromString(initialCash); err != nil {
			return nil, fmt.Errorf("bad initial_cash %q: %w", initialCash, err)
		}
		client.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}
	return result, nil
}

// Delete removes a client row. Event cascade belongs to the caller.
func (r *Repository) Delete(name string) error {
	result, err := r.db.Exec("DELETE FROM clients WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}

	r.log.Info().Str("client", name).Msg("Client deleted")
	return nil
}

func scanClient(row *sql.Row) (Client, error) {
	var client Client
	var initialCash, createdAt string

	err := row.Scan(&client.Name, &initialCash, &client.RiskProfile, &createdAt)
	if err != nil {
		return client, err
	}
	if client.InitialCash, err = decimal.NewFromString(initialCash); err != nil {
		return client, fmt.Errorf("bad initial_cash %q: %w", initialCash, err)
	}
	client.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return client, nil
}
