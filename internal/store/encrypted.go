package store

import (
	"errors"
	"fmt"

	"snip-go/internal/encryption"
	"snip-go/internal/snip"
)

// ErrLocked is returned when reading from an EncryptedStore that has not
// been unlocked.
var ErrLocked = errors.New("encrypted store is locked")

// armorOverhead bounds the fixed cost of an armored age envelope: header
// stanza, MAC, nonce, per-chunk tags and the armor lines.
const armorOverhead = 1024

// EncryptedStore seals every value before handing it to the inner store.
// Writes only need the public key; reads need Unlock.
type EncryptedStore struct {
	inner snip.Store
	enc   snip.Encryptor
	dc    snip.DecryptionContext
}

// NewEncryptedStore wraps inner. dc may be nil for a write-only store.
func NewEncryptedStore(inner snip.Store, enc snip.Encryptor, dc snip.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, dc: dc}
}

// Unlock enables reads with the given passphrase.
func (s *EncryptedStore) Unlock(passphrase string) error {
	dc, err := s.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking store: %w", err)
	}
	s.dc = dc
	return nil
}

// Get decrypts the inner value.
func (s *EncryptedStore) Get(key string) ([]byte, bool, error) {
	sealed, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if s.dc == nil {
		return nil, false, ErrLocked
	}
	plain, err := encryption.Open(s.dc, sealed)
	if err != nil {
		return nil, false, fmt.Errorf("decrypting %q: %w", key, err)
	}
	return plain, true, nil
}

// Set encrypts value and stores it.
func (s *EncryptedStore) Set(key string, value []byte) error {
	if err := checkSize(key, value, s.MaxItemSize()); err != nil {
		return err
	}
	sealed, err := encryption.Seal(s.enc, value)
	if err != nil {
		return fmt.Errorf("encrypting %q: %w", key, err)
	}
	return s.inner.Set(key, sealed)
}

// Remove deletes key from the inner store.
func (s *EncryptedStore) Remove(key string) error { return s.inner.Remove(key) }

// MaxItemSize is the largest plaintext whose armored ciphertext still fits
// the inner ceiling. Armor base64-encodes three bytes as four and breaks
// lines every 64 characters.
func (s *EncryptedStore) MaxItemSize() int {
	n := s.inner.MaxItemSize()
	if n <= 0 {
		return n
	}
	return max((n-armorOverhead)*3/4*64/65, 1)
}

// RecordSave forwards to the inner store when it keeps save history.
func (s *EncryptedStore) RecordSave(chunks, size int, hash string) error {
	if r, ok := s.inner.(snip.SaveRecorder); ok {
		return r.RecordSave(chunks, size, hash)
	}
	return nil
}

var (
	_ snip.Store        = (*EncryptedStore)(nil)
	_ snip.SaveRecorder = (*EncryptedStore)(nil)
)
