package store

import (
	"context"
	"path/filepath"
	"testing"

	"snip-go/internal/config"
	"snip-go/internal/database"
)

func TestNewStoreFromConfig(t *testing.T) {
	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("NewDatabaseFromConfig() error = %v", err)
	}
	defer db.Close()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		db      *database.SQLiteDatabase
		wantErr bool
	}{
		{
			name: "memory store",
			cfg:  config.StoreConfig{Type: "memory", MaxItemSize: 100},
		},
		{
			name: "filesystem store",
			cfg:  config.StoreConfig{Type: "filesystem", MaxItemSize: 100, FSRoot: filepath.Join(t.TempDir(), "store")},
		},
		{
			name:    "filesystem store without root",
			cfg:     config.StoreConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name: "sqlite store",
			cfg:  config.StoreConfig{Type: "sqlite", MaxItemSize: 100},
			db:   db,
		},
		{
			name:    "sqlite store without database",
			cfg:     config.StoreConfig{Type: "sqlite"},
			wantErr: true,
		},
		{
			name:    "s3 store without bucket",
			cfg:     config.StoreConfig{Type: "s3"},
			wantErr: true,
		},
		{
			name:    "unknown store type",
			cfg:     config.StoreConfig{Type: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromConfig(context.Background(), tt.cfg, tt.db)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStoreFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewStoreFromConfig() should return nil on error")
				}
				return
			}
			if got.MaxItemSize() != tt.cfg.MaxItemSize {
				t.Errorf("MaxItemSize() = %d, want %d", got.MaxItemSize(), tt.cfg.MaxItemSize)
			}
			if err := got.Set("k", []byte("v")); err != nil {
				t.Errorf("Set() error = %v", err)
			}
			if v, ok, err := got.Get("k"); err != nil || !ok || string(v) != "v" {
				t.Errorf("Get() = %q, %v, %v", v, ok, err)
			}
		})
	}
}
