package testutil

import (
	"snip-go/internal/encryption"
)

// NewTestEncryptor creates a deterministic encryptor already set up with
// passphrase, so Unlock only accepts that passphrase.
func NewTestEncryptor(passphrase string) *encryption.TestEncryptor {
	enc := encryption.NewTestEncryptor()
	enc.Setup(passphrase)
	return enc
}
