package snip

import "errors"

// ErrItemTooLarge is returned by Store.Set when a value exceeds MaxItemSize.
var ErrItemTooLarge = errors.New("item exceeds the store's size ceiling")

// Store is the opaque key-value store the snippet tree is persisted to.
// Values larger than MaxItemSize are rejected; callers chunk beyond it.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// MaxItemSize is the largest value, in bytes, a single Set accepts.
	MaxItemSize() int
}

// SaveRecorder is implemented by stores that keep a history of saves.
type SaveRecorder interface {
	RecordSave(chunks int, size int, hash string) error
}
