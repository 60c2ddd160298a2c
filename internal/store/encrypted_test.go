package store

import (
	"bytes"
	"errors"
	"testing"

	"snip-go/internal/config"
	"snip-go/internal/database"
	"snip-go/internal/encryption"
)

func TestEncryptedStore(t *testing.T) {
	inner := NewMemoryStore(4096)
	enc := encryption.NewTestEncryptor()
	enc.Setup("hunter2")
	s := NewEncryptedStore(inner, enc, nil)

	if err := s.Set("k", []byte("secret")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	raw, _, _ := inner.Get("k")
	if bytes.Equal(raw, []byte("secret")) {
		t.Error("inner store holds plaintext")
	}

	if _, _, err := s.Get("k"); !errors.Is(err, ErrLocked) {
		t.Errorf("Get() before Unlock error = %v, want ErrLocked", err)
	}
	if _, ok, err := s.Get("missing"); ok || err != nil {
		t.Errorf("Get(missing) while locked = ok %v, err %v", ok, err)
	}

	if err := s.Unlock("wrong"); err == nil {
		t.Error("Unlock() with wrong passphrase should fail")
	}
	if err := s.Unlock("hunter2"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	got, ok, err := s.Get("k")
	if err != nil || !ok || string(got) != "secret" {
		t.Errorf("Get() = %q, %v, %v; want \"secret\"", got, ok, err)
	}

	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := inner.Get("k"); ok {
		t.Error("Remove() did not reach the inner store")
	}
}

func TestEncryptedStore_MaxItemSize(t *testing.T) {
	tests := []struct {
		inner int
		want  int
	}{
		{8192, 5293},
		{1024, 1},
		{0, 0},
	}
	for _, tt := range tests {
		s := NewEncryptedStore(NewMemoryStore(tt.inner), encryption.NewTestEncryptor(), nil)
		if got := s.MaxItemSize(); got != tt.want {
			t.Errorf("MaxItemSize() over %d = %d, want %d", tt.inner, got, tt.want)
		}
		if got := s.MaxItemSize(); got >= tt.inner && tt.inner > 0 {
			t.Errorf("MaxItemSize() = %d must be below inner %d", got, tt.inner)
		}
	}

	s := NewEncryptedStore(NewMemoryStore(8192), encryption.NewTestEncryptor(), nil)
	if err := s.Set("big", make([]byte, 5294)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Set() oversize error = %v, want ErrItemTooLarge", err)
	}
}

func TestEncryptedStore_RecordSave(t *testing.T) {
	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("NewDatabaseFromConfig() error = %v", err)
	}
	defer db.Close()

	s := NewEncryptedStore(db.KV(8192), encryption.NewTestEncryptor(), nil)
	if err := s.RecordSave(2, 100, "abc"); err != nil {
		t.Fatalf("RecordSave() error = %v", err)
	}
	saves, _ := db.ListSaves(1)
	if len(saves) != 1 || saves[0].Hash != "abc" {
		t.Errorf("ListSaves() = %+v", saves)
	}

	// Inner stores without a save log accept the call silently.
	if err := NewEncryptedStore(NewMemoryStore(0), encryption.NewTestEncryptor(), nil).RecordSave(1, 1, "x"); err != nil {
		t.Errorf("RecordSave() on plain inner store error = %v", err)
	}
}
