package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystemStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	s, err := NewFileSystemStore(root, 32)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.ValidateSetup(); err != nil {
		t.Fatalf("ValidateSetup() error = %v", err)
	}

	if _, ok, err := s.Get("snippets_0"); ok || err != nil {
		t.Errorf("Get(missing) = ok %v, err %v", ok, err)
	}

	keys := []string{"snippets_meta", "snippets_0", "../escape", "with/slash"}
	for _, k := range keys {
		if err := s.Set(k, []byte("value of "+k)); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	for _, k := range keys {
		got, ok, err := s.Get(k)
		if err != nil || !ok || string(got) != "value of "+k {
			t.Errorf("Get(%q) = %q, %v, %v", k, got, ok, err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != len(keys) {
		t.Errorf("store root has %d entries, want %d", len(entries), len(keys))
	}

	listed, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	want := []string{"../escape", "snippets_0", "snippets_meta", "with/slash"}
	if len(listed) != len(want) {
		t.Fatalf("Keys() = %v, want %v", listed, want)
	}
	for i := range want {
		if listed[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, listed[i], want[i])
		}
	}

	if err := s.Set("big", make([]byte, 33)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Set() oversize error = %v, want ErrItemTooLarge", err)
	}

	if err := s.Remove("snippets_0"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove("snippets_0"); err != nil {
		t.Errorf("Remove() of absent key error = %v", err)
	}
	if _, ok, _ := s.Get("snippets_0"); ok {
		t.Error("Get() after Remove() still found key")
	}
}

func TestFileSystemStore_Overwrite(t *testing.T) {
	s, err := NewFileSystemStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	s.Set("k", []byte("a longer first value"))
	s.Set("k", []byte("short"))
	if got, _, _ := s.Get("k"); string(got) != "short" {
		t.Errorf("Get() = %q, want %q", got, "short")
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".tmp-*"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "gone"), 0)
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	os.RemoveAll(s.root)
	if err := s.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for missing root")
	}
}
