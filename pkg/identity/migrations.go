package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the membership schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL UNIQUE,
					description TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version:     2,
			Description: "Create studios and clients tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS studios (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS clients (
					id BIGSERIAL PRIMARY KEY,
					studio_id BIGINT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					contact_email VARCHAR(255),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX idx_clients_studio_id ON clients(studio_id);
			`,
		},
		{
			Version:     3,
			Description: "Create studio_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS studio_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					studio_id BIGINT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, studio_id)
				);

				CREATE INDEX idx_studio_members_user_id ON studio_members(user_id);
				CREATE INDEX idx_studio_members_studio_id ON studio_members(studio_id);
			`,
		},
		{
			Version:     4,
			Description: "Create client_users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS client_users (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id),
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, client_id)
				);

				CREATE INDEX idx_client_users_user_id ON client_users(user_id);
				CREATE INDEX idx_client_users_client_id ON client_users(client_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identity_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM identity_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identity_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SeedRoles inserts the built-in role names if they don't exist. Guest is
// not seeded: it is a derived fallback, never a stored membership role.
func SeedRoles(ctx context.Context, db *sql.DB) error {
	for _, role := range []Role{RoleStudioAdmin, RoleStudioMember, RoleClientAdmin, RoleClientMember} {
		_, err := db.ExecContext(ctx, `
			INSERT INTO roles (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, string(role))
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role, err)
		}
	}

	return nil
}
