package repository

// Database backend identifiers.
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypePostgres = "postgres"
)

// Repositories holds all repository implementations. This struct
// provides a single point of access to the data access layer.
type Repositories struct {
	Sessions  SessionRepository
	Artifacts ArtifactRepository
	Folders   FolderRepository
	Users     UserRepository

	DatabaseType string
	Cleanup      func()
}
