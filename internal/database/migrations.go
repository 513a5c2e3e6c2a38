package database

import (
	"fmt"
	"sort"
)

// Migration is one schema step
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "command_metrics",
		UpSQL: `
			CREATE TABLE command_metrics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				command TEXT NOT NULL,
				nick TEXT NOT NULL,
				channel TEXT NOT NULL,
				success BOOLEAN NOT NULL,
				duration_ms INTEGER NOT NULL,
				request_id TEXT NOT NULL DEFAULT '',
				timestamp DATETIME NOT NULL
			);
			CREATE INDEX idx_command_metrics_timestamp ON command_metrics(timestamp);
			CREATE INDEX idx_command_metrics_command ON command_metrics(command);
		`,
		DownSQL: `DROP TABLE command_metrics;`,
	},
	{
		Version: 2,
		Name:    "url_titles",
		UpSQL: `
			CREATE TABLE url_titles (
				url TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				fetched_at DATETIME NOT NULL
			);
			CREATE INDEX idx_url_titles_fetched_at ON url_titles(fetched_at);
		`,
		DownSQL: `DROP TABLE url_titles;`,
	},
}

// runMigrations applies every migration newer than the recorded version
func (db *DB) runMigrations() error {
	if err := db.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range sortedMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		if err := db.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}

	return nil
}

func (db *DB) ensureMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty BOOLEAN NOT NULL DEFAULT 0
		)
	`
	_, err := db.conn.Exec(query)
	return err
}

// getCurrentVersion returns the highest cleanly applied migration
func (db *DB) getCurrentVersion() (int, error) {
	var version int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations WHERE dirty = 0").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// SchemaVersion returns the current migration version
func (db *DB) SchemaVersion() (int, error) {
	return db.getCurrentVersion()
}

// applyMigration runs one migration inside a transaction
func (db *DB) applyMigration(migration Migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.Exec("INSERT INTO schema_migrations (version, dirty) VALUES (?, 1)", migration.Version)
	if err != nil {
		return fmt.Errorf("failed to mark migration as dirty: %w", err)
	}

	if _, err = tx.Exec(migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	_, err = tx.Exec("UPDATE schema_migrations SET dirty = 0 WHERE version = ?", migration.Version)
	if err != nil {
		return fmt.Errorf("failed to mark migration as clean: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// Rollback reverts the last applied migration
func (db *DB) Rollback() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var target *Migration
	for _, m := range migrations {
		if m.Version == currentVersion {
			target = &m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %d has no down SQL", currentVersion)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.Exec(target.DownSQL); err != nil {
		return fmt.Errorf("failed to execute down migration: %w", err)
	}

	if _, err = tx.Exec("DELETE FROM schema_migrations WHERE version = ?", currentVersion); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	return nil
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})
	return sorted
}
