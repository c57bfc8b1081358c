package scheduler

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
	"github.com/rs/zerolog"

	"github.com/oakmont/folio/internal/database"
)

// HealthCheckJob performs database integrity checks.
// Runs every 6 hours to ensure database health
type HealthCheckJob struct {
	log        zerolog.Logger
	ledgerDB   *database.DB
	historyDir string
}

// NewHealthCheckJob creates a new health check job
func NewHealthCheckJob(ledgerDB *database.DB, historyDir string, log zerolog.Logger) *HealthCheckJob {
	return &HealthCheckJob{
		log:        log.With().Str("job", "health_check").Logger(),
		ledgerDB:   ledgerDB,
		historyDir: historyDir,
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run executes the health check
func (j *HealthCheckJob) Run() error {
	j.log.Info().Msg("Starting database health check")
	startTime := time.Now()

	if err := j.checkDatabaseIntegrity("ledger", j.ledgerDB.Conn()); err != nil {
		// Ledger corruption is critical - cannot auto-recover
		return fmt.Errorf("ledger database is corrupted: %w", err)
	}

	if err := j.checkOrphanedSettlements(); err != nil {
		return err
	}

	j.checkHistoryDatabases()

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Health check completed successfully")

	return nil
}

// checkDatabaseIntegrity runs SQLite's integrity check on a connection
func (j *HealthCheckJob) checkDatabaseIntegrity(name string, db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}
	j.log.Debug().Str("database", name).Msg("Database integrity OK")
	return nil
}

// checkOrphanedSettlements verifies every trade settlement still points at
// a stored transaction. Orphans indicate a partial delete and are reported,
// not repaired.
func (j *HealthCheckJob) checkOrphanedSettlements() error {
	var orphans int
	err := j.ledgerDB.QueryRow(`
		SELECT COUNT(*)
		FROM cash_events c
		WHERE c.linked_transaction_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM transactions t WHERE t.id = c.linked_transaction_id)
	`).Scan(&orphans)
	if err != nil {
		return fmt.Errorf("failed to check for orphaned settlements: %w", err)
	}

	if orphans > 0 {
		j.log.Error().Int("count", orphans).Msg("Orphaned trade settlements found")
		return fmt.Errorf("found %d orphaned trade settlements", orphans)
	}
	return nil
}

// checkHistoryDatabases verifies integrity of per-symbol history databases
func (j *HealthCheckJob) checkHistoryDatabases() {
	if j.historyDir == "" {
		j.log.Debug().Msg("History directory not configured, skipping history database checks")
		return
	}

	entries, err := os.ReadDir(j.historyDir)
	if err != nil {
		if os.IsNotExist(err) {
			j.log.Debug().Msg("History directory does not exist, skipping")
			return
		}
		j.log.Error().Err(err).Msg("Failed to read history directory")
		return
	}

	corrupted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}

		path := filepath.Join(j.historyDir, entry.Name())
		db, err := sql.Open("sqlite", path)
		if err != nil {
			j.log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to open history database")
			continue
		}

		if err := j.checkDatabaseIntegrity(entry.Name(), db); err != nil {
			corrupted++
			j.log.Error().Err(err).Str("file", entry.Name()).Msg("History database corrupted")
		}
		db.Close()
	}

	if corrupted > 0 {
		j.log.Warn().Int("corrupted", corrupted).Msg("Corrupted history databases found")
	}
}
