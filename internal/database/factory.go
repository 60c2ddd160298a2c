package database

import (
	"fmt"
	"os"
	"path/filepath"

	"snip-go/internal/config"
	"snip-go/internal/snip"
)

// DatabaseFile is the file name of the history database inside DataDir.
const DatabaseFile = "snip.db"

// NewDatabaseFromConfig opens the database described by cfg and migrates it
// to the latest schema.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock snip.Clock) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, DatabaseFile)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, clock)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
