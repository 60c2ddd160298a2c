package store

import (
	"context"
	"fmt"

	"snip-go/internal/config"
	"snip-go/internal/database"
	"snip-go/internal/snip"
)

// NewStoreFromConfig creates a Store based on the store config type. db is
// only consulted for type "sqlite" and may be nil otherwise.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, db *database.SQLiteDatabase) (snip.Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.MaxItemSize), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem store requires fs_root to be set")
		}
		s, err := NewFileSystemStore(cfg.FSRoot, cfg.MaxItemSize)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite store requires an open database")
		}
		return db.KV(cfg.MaxItemSize), nil
	case "s3":
		s, err := NewS3StoreFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
