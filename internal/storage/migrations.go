package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: tenants and decisions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS tenants (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS decisions (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					external_id TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					counterparty TEXT,
					amount_cents INTEGER NOT NULL,
					code TEXT NOT NULL,
					sub_code TEXT,
					tax_treatment TEXT,
					splits TEXT,
					confidence REAL NOT NULL,
					source TEXT NOT NULL,
					status TEXT NOT NULL,
					rationale TEXT,
					was_correct INTEGER,
					corrected_code TEXT,
					corrected_sub_code TEXT,
					corrected_tax_treatment TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (tenant_id) REFERENCES tenants(id),
					UNIQUE(tenant_id, external_id)
				)`,
				`CREATE INDEX idx_decisions_tenant ON decisions(tenant_id)`,
				`CREATE INDEX idx_decisions_tenant_status ON decisions(tenant_id, status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add learned rules and corrections",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id TEXT NOT NULL,
					signature TEXT NOT NULL,
					code TEXT NOT NULL,
					sub_code TEXT,
					tax_treatment TEXT,
					boost REAL NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					support_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (tenant_id) REFERENCES tenants(id),
					UNIQUE(tenant_id, signature)
				)`,

				`CREATE TABLE IF NOT EXISTS corrections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id TEXT NOT NULL,
					decision_id TEXT NOT NULL,
					signature TEXT NOT NULL,
					original_code TEXT NOT NULL,
					original_sub_code TEXT,
					original_tax_treatment TEXT,
					corrected_code TEXT NOT NULL,
					corrected_sub_code TEXT,
					corrected_tax_treatment TEXT,
					corrector_id TEXT NOT NULL,
					reason TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (tenant_id) REFERENCES tenants(id),
					FOREIGN KEY (decision_id) REFERENCES decisions(id),
					UNIQUE(tenant_id, decision_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index corrections for pattern counting",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_corrections_tenant_signature
					ON corrections(tenant_id, signature, corrected_code, corrected_sub_code, corrected_tax_treatment)`,
				`CREATE INDEX IF NOT EXISTS idx_rules_tenant ON rules(tenant_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
