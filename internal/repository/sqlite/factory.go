package sqlite

import (
	"database/sql"

	"github.com/bioshelf/bioshelf/internal/repository"
)

// NewRepositories creates all SQLite repository implementations. The db
// parameter must be a valid, open database connection; the returned
// Cleanup closes it.
func NewRepositories(db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Sessions:     NewSessionRepository(db),
		Artifacts:    NewArtifactRepository(db),
		Folders:      NewFolderRepository(db),
		Users:        NewUserRepository(db),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup: func() {
			db.Close()
		},
	}, nil
}
