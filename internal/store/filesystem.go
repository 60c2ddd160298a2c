package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"snip-go/internal/snip"
)

// FileSystemStore keeps one file per key under a root directory:
//
//	<root>/
//	  <hex(key)>.val
//
// Keys are hex-encoded so any key is a valid file name.
type FileSystemStore struct {
	root        string
	maxItemSize int
}

// NewFileSystemStore creates a store rooted at the given path.
func NewFileSystemStore(root string, maxItemSize int) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileSystemStore{root: root, maxItemSize: maxItemSize}, nil
}

const valueExt = ".val"

func (s *FileSystemStore) path(key string) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(key))+valueExt)
}

// Get reads the value for key.
func (s *FileSystemStore) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return data, true, nil
}

// Set writes value for key atomically.
func (s *FileSystemStore) Set(key string, value []byte) error {
	if err := checkSize(key, value, s.maxItemSize); err != nil {
		return err
	}
	return s.writeFile(s.path(key), bytes.NewReader(value), int64(len(value)))
}

// Remove deletes the file for key.
func (s *FileSystemStore) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return nil
}

// MaxItemSize returns the per-value ceiling.
func (s *FileSystemStore) MaxItemSize() int { return s.maxItemSize }

// Keys returns the stored keys in sorted order.
func (s *FileSystemStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing store: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, valueExt) {
			continue
		}
		k, err := hex.DecodeString(strings.TrimSuffix(name, valueExt))
		if err != nil {
			continue
		}
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys, nil
}

// ValidateSetup verifies that the store root is an accessible directory.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements snip.Store
var _ snip.Store = (*FileSystemStore)(nil)
