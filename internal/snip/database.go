package snip

import "snip-go/internal/model"

// Database keeps local history: the operation log and the save log. When the
// store type is "sqlite" it also holds the snippet values themselves.
type Database interface {
	// CreateOperation records the start of a command and returns it with
	// its assigned ID.
	CreateOperation(operation, parameters string) (*model.Operation, error)

	// FinishOperation stamps the finish time and final status.
	FinishOperation(id int64, status string) error

	// ListOperations returns up to limit operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// MaxOperationID returns the highest operation ID, or 0 when empty.
	MaxOperationID() (int64, error)

	SaveRecorder

	// ListSaves returns up to limit saves, newest first.
	ListSaves(limit int) ([]*model.Save, error)

	// BackupTo writes a consistent copy of the database to path.
	BackupTo(path string) error

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	Close() error
}
