package db

import (
	"context"
	"database/sql"

	"github.com/scribelab/scribe/internal/server/repositories/documents"
	"github.com/scribelab/scribe/internal/server/repositories/folders"
)

type InMemoryRepositoryManager struct {
	documents documents.Repository
	folders   folders.Repository
}

func (m InMemoryRepositoryManager) Conn() *sql.DB {
	return nil
}

func (m InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m InMemoryRepositoryManager) Documents() documents.Repository {
	return m.documents
}

func (m InMemoryRepositoryManager) Folders() folders.Repository {
	return m.folders
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return InMemoryRepositoryManager{
		documents: documents.NewInMemoryRepository(),
		folders:   folders.NewInMemoryRepository(),
	}
}
