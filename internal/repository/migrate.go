package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate 按文件名顺序执行尚未应用的迁移，每个文件一个事务
func Migrate(ctx context.Context, db DB) error {
	return migrate(ctx, db, migrationsFS)
}

func migrate(ctx context.Context, db DB, migrations fs.FS) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		id TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, file := range files {
		id := filepath.Base(file)
		if applied[id] {
			continue
		}

		content, err := fs.ReadFile(migrations, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		err = WithTx(ctx, db, func(tx pgx.Tx) error {
			if strings.TrimSpace(string(content)) != "" {
				if _, err := tx.Exec(ctx, string(content)); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (id) VALUES ($1)`, id)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", id, err)
		}
		slog.Info("Applied migration", "id", id)
	}

	return nil
}

func appliedMigrations(ctx context.Context, db Querier) (map[string]bool, error) {
	rows, err := db.Query(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}
