package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// RunMigrations applies every *.up.sql file in dir that is not yet recorded
// in the migrations table, in lexical order, each in its own transaction.
func RunMigrations(ctx context.Context, conn *Connection, dir string, log *logger.Logger) (int, error) {
	db := conn.GetDB()

	log.Info("Starting migrations", "migrations_path", dir)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to query migrations table: %w", err)
	}
	defer rows.Close()

	appliedMigrations := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, err
		}
		appliedMigrations[name] = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}

	var migrations []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrations = append(migrations, file.Name())
		}
	}
	sort.Strings(migrations)

	applied := 0
	for _, migration := range migrations {
		if appliedMigrations[migration] {
			log.Debug("Migration already applied, skipping", "migration", migration)
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, migration))
		if err != nil {
			return applied, fmt.Errorf("failed to read migration file %s: %w", migration, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("error executing migration %s: %w", migration, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (name) VALUES ($1)", migration); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("failed to record migration %s: %w", migration, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("failed to commit transaction for migration %s: %w", migration, err)
		}

		applied++
		log.Info("Applied migration", "migration", migration)
	}

	log.Info("All migrations completed", "applied", applied, "total", len(migrations))
	return applied, nil
}
