// Package repomanager selects the storage backend for the server and hands
// out its repositories.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/securingai/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}
