package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
)

type Migration struct {
	ID          string
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

var migrations = []Migration{
	{
		ID:          "001_transcripts",
		Description: "Create transcripts table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS transcripts (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					model TEXT,
					device TEXT,
					sample_rate INTEGER,
					frames INTEGER,
					tokens INTEGER,
					text TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					error TEXT,
					created_at REAL DEFAULT (julianday('now'))
				);

				CREATE INDEX IF NOT EXISTS transcripts_created_at
					ON transcripts (created_at);
			`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec(`DROP TABLE IF EXISTS transcripts;`)
			return err
		},
	},
	{
		ID:          "002_config",
		Description: "Create config table for stored setting overrides",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS config (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at REAL DEFAULT (julianday('now'))
				);
			`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec(`DROP TABLE IF EXISTS config;`)
			return err
		},
	},
	{
		ID:          "003_transcript_timing",
		Description: "Record session wall time and degenerate token count",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				ALTER TABLE transcripts ADD COLUMN elapsed_ms INTEGER NOT NULL DEFAULT 0;
				ALTER TABLE transcripts ADD COLUMN degenerate INTEGER NOT NULL DEFAULT 0;
			`)
			return err
		},
		Down: func(tx *sql.Tx) error {
			log.Warn("Reverting migration 003_transcript_timing is not supported")
			return nil
		},
	},
}

// Confirm decides whether a pending migration is applied.
type Confirm func(Migration) (bool, error)

// AskConfirm prompts on the terminal for each pending migration.
func AskConfirm(m Migration) (bool, error) {
	var confirm bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("New migration found: %s", m.ID)).
		Description(m.Description).
		Value(&confirm).
		Run()
	return confirm, err
}

// AlwaysConfirm applies every pending migration.
func AlwaysConfirm(Migration) (bool, error) {
	return true, nil
}

// ErrPendingMigrations is returned by Open when the schema is behind and
// migrations were declined.
var ErrPendingMigrations = errors.New("archive has pending migrations; run hark migrate")

func Migrate(db *sql.DB, logger *log.Logger, confirm Confirm) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migration_history (
			id TEXT PRIMARY KEY,
			applied_at REAL DEFAULT (julianday('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("error creating migration_history table: %w", err)
	}

	for _, migration := range migrations {
		var applied bool
		err := db.QueryRow("SELECT 1 FROM migration_history WHERE id = ?", migration.ID).Scan(&applied)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("error checking migration status: %w", err)
		}

		if applied {
			logger.Debug("Skipping migration (already applied)", "id", migration.ID)
			continue
		}

		ok, err := confirm(migration)
		if err != nil {
			return fmt.Errorf("error getting user confirmation: %w", err)
		}
		if !ok {
			logger.Info("Migration skipped", "id", migration.ID)
			return ErrPendingMigrations
		}

		logger.Info("Applying migration", "id", migration.ID)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("error starting transaction: %w", err)
		}

		err = migration.Up(tx)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error applying migration %s: %w", migration.ID, err)
		}

		_, err = tx.Exec("INSERT INTO migration_history (id, applied_at) VALUES (?, julianday('now'))", migration.ID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error recording migration %s: %w", migration.ID, err)
		}

		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("error committing migration %s: %w", migration.ID, err)
		}

		logger.Info("Successfully applied migration", "id", migration.ID)
	}

	return nil
}
