// Package repositories wires the local SQLite store: opening the database,
// running migrations and constructing the per-table repositories.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/aircater/internal/migrations"
	"github.com/dmitrijs2005/aircater/internal/repositories/entities"
	"github.com/dmitrijs2005/aircater/internal/repositories/metadata"
	"github.com/dmitrijs2005/aircater/internal/repositories/queue"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Entities entities.Repository
	Queue    queue.Repository
	Metadata metadata.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn, migrates it and returns the
// handle plus repositories bound to it. Callers needing transactional writes
// construct tx-bound repositories inside dbx.WithTx.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, *Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite is happiest with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := &Repositories{
		Entities: entities.NewSQLiteRepository(db),
		Queue:    queue.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}
	return db, repos, nil
}
