package store

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(8)

	if _, ok, err := s.Get("missing"); ok || err != nil {
		t.Errorf("Get(missing) = ok %v, err %v", ok, err)
	}

	value := []byte("abc")
	if err := s.Set("k", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'x'
	got, ok, err := s.Get("k")
	if err != nil || !ok || !bytes.Equal(got, []byte("abc")) {
		t.Errorf("Get() = %q, %v, %v; want stored copy \"abc\"", got, ok, err)
	}
	got[1] = 'y'
	if again, _, _ := s.Get("k"); !bytes.Equal(again, []byte("abc")) {
		t.Errorf("Get() returned aliased value, now %q", again)
	}

	if err := s.Set("big", []byte("123456789")); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Set() oversize error = %v, want ErrItemTooLarge", err)
	}
	if err := s.Set("exact", []byte("12345678")); err != nil {
		t.Errorf("Set() at ceiling error = %v", err)
	}

	if keys := s.Keys(); len(keys) != 2 || keys[0] != "exact" || keys[1] != "k" {
		t.Errorf("Keys() = %v", keys)
	}

	if err := s.Remove("k"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove("k"); err != nil {
		t.Errorf("Remove() of absent key error = %v", err)
	}
	if _, ok, _ := s.Get("k"); ok {
		t.Error("Get() after Remove() still found key")
	}
}

func TestMemoryStore_Unlimited(t *testing.T) {
	s := NewMemoryStore(0)
	if err := s.Set("k", bytes.Repeat([]byte("x"), 1<<16)); err != nil {
		t.Errorf("Set() with no ceiling error = %v", err)
	}
}
