package postgres

import (
	"github.com/bioshelf/bioshelf/internal/repository"
)

// NewRepositories creates all PostgreSQL repository implementations.
// The pool must be open; the returned Cleanup closes it.
func NewRepositories(pool *Pool) (*repository.Repositories, error) {
	if pool == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Sessions:     NewSessionRepository(pool),
		Artifacts:    NewArtifactRepository(pool),
		Folders:      NewFolderRepository(pool),
		Users:        NewUserRepository(pool),
		DatabaseType: repository.DatabaseTypePostgres,
		Cleanup:      pool.Close,
	}, nil
}
