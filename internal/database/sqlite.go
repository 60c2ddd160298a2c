package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snip-go/internal/database/migrations"
	"snip-go/internal/model"
	"snip-go/internal/snip"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements snip.Database using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock snip.Clock
}

// NewSQLiteDatabase opens a SQLite database at path, which can be a file
// path or ":memory:". A nil clock uses the real time.
func NewSQLiteDatabase(path string, clock snip.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	s := NewSQLiteDatabaseFromDB(db, clock)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, clock snip.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = snip.RealClock{}
	}
	return &SQLiteDatabase{db: db, clock: clock}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would otherwise be a separate,
	// empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteDatabase) now() time.Time {
	return s.clock.Now().UTC()
}

// Operation log

func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*model.Operation, error) {
	op := &model.Operation{
		StartedAt:  s.now(),
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}
	res, err := s.db.Exec(
		"INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, ?)",
		op.StartedAt, op.Operation, op.Parameters, op.Status)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	if op.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.Exec(
		"UPDATE operations SET finished_at = ?, status = ? WHERE id = ?",
		s.now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(
		"SELECT id, started_at, finished_at, operation, parameters, status FROM operations ORDER BY id DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var result []*model.Operation
	for rows.Next() {
		var op model.Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.StartedAt, &finished, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM operations").Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Save log

func (s *SQLiteDatabase) RecordSave(chunks int, size int, hash string) error {
	_, err := s.db.Exec(
		"INSERT INTO saves (saved_at, chunks, size, hash) VALUES (?, ?, ?, ?)",
		s.now(), chunks, size, hash)
	if err != nil {
		return fmt.Errorf("recording save: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListSaves(limit int) ([]*model.Save, error) {
	rows, err := s.db.Query(
		"SELECT id, saved_at, chunks, size, hash FROM saves ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var result []*model.Save
	for rows.Next() {
		var sv model.Save
		if err := rows.Scan(&sv.ID, &sv.SavedAt, &sv.Chunks, &sv.Size, &sv.Hash); err != nil {
			return nil, fmt.Errorf("listing saves: %w", err)
		}
		result = append(result, &sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	return result, nil
}

// KV returns a snip.Store backed by the kv table. Saves written through it
// are recorded in this database's save log.
func (s *SQLiteDatabase) KV(maxItemSize int) *KVStore {
	return &KVStore{db: s, maxItemSize: maxItemSize}
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate applies pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// KVStore is the snip.Store view of the kv table.
type KVStore struct {
	db          *SQLiteDatabase
	maxItemSize int
}

func (k *KVStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := k.db.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

func (k *KVStore) Set(key string, value []byte) error {
	if k.maxItemSize > 0 && len(value) > k.maxItemSize {
		return fmt.Errorf("set %q: %d bytes > %d: %w", key, len(value), k.maxItemSize, snip.ErrItemTooLarge)
	}
	if value == nil {
		value = []byte{}
	}
	_, err := k.db.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, k.db.now())
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

func (k *KVStore) Remove(key string) error {
	if _, err := k.db.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

func (k *KVStore) MaxItemSize() int {
	return k.maxItemSize
}

// Keys returns every stored key in order.
func (k *KVStore) Keys() ([]string, error) {
	rows, err := k.db.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("listing keys: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (k *KVStore) RecordSave(chunks int, size int, hash string) error {
	return k.db.RecordSave(chunks, size, hash)
}

// Compile-time checks
var (
	_ snip.Database     = (*SQLiteDatabase)(nil)
	_ snip.Store        = (*KVStore)(nil)
	_ snip.SaveRecorder = (*KVStore)(nil)
)
