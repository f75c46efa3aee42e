package db

import (
	"context"
	"database/sql"

	"github.com/scribelab/scribe/internal/server/repositories/documents"
	"github.com/scribelab/scribe/internal/server/repositories/folders"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Documents() documents.Repository
	Folders() folders.Repository
}
