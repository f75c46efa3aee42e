// Package storage opens the agent's local SQLite database, applies embedded
// migrations and wires the repositories on top of it.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/scribelab/scribe/internal/client/migrations"
	"github.com/scribelab/scribe/internal/client/repositories/metadata"
	"github.com/scribelab/scribe/internal/client/repositories/mirror"
	"github.com/scribelab/scribe/internal/client/repositories/queue"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Store bundles the open database with the repositories built on it.
type Store struct {
	DB       *sql.DB
	Queue    queue.Repository
	Mirror   mirror.Repository
	Metadata metadata.Repository
}

// RunMigrations applies all embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the SQLite database at dsn, migrates it
// and returns the repository bundle.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		DB:       db,
		Queue:    queue.NewSQLiteRepository(db),
		Mirror:   mirror.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
