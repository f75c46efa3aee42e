// Package db wires the PostgreSQL connection, migrations and repositories
// behind a single manager.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/scribelab/scribe/internal/server/migrations"
	"github.com/scribelab/scribe/internal/server/repositories/documents"
	"github.com/scribelab/scribe/internal/server/repositories/folders"
)

type PostgresRepositoryManager struct {
	db        *sql.DB
	documents documents.Repository
	folders   folders.Repository
}

func (m *PostgresRepositoryManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresRepositoryManager) Documents() documents.Repository {
	return m.documents
}

func (m *PostgresRepositoryManager) Folders() folders.Repository {
	return m.folders
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, m.db, ".")
}

func NewPostgresRepositoryManager(dsn string) (RepositoryManager, error) {

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	return &PostgresRepositoryManager{
		db:        db,
		documents: documents.NewPostgresRepository(db),
		folders:   folders.NewPostgresRepository(db),
	}, nil
}
