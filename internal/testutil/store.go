package testutil

import (
	"sync"

	"snip-go/internal/snip"
	"snip-go/internal/store"
)

// SaveRecord is one RecordSave call seen by a TestStore.
type SaveRecord struct {
	Chunks int
	Size   int
	Hash   string
}

// TestStore is an in-memory snip.Store that counts writes, records saves
// and can be told to fail writes to particular keys. Safe for concurrent
// use.
type TestStore struct {
	*store.MemoryStore

	mu       sync.Mutex
	sets     map[string]int
	removes  map[string]int
	failSets map[string]error
	saves    []SaveRecord
}

// NewTestStore creates an empty store with the given size ceiling.
func NewTestStore(maxItemSize int) *TestStore {
	return &TestStore{
		MemoryStore: store.NewMemoryStore(maxItemSize),
		sets:        make(map[string]int),
		removes:     make(map[string]int),
		failSets:    make(map[string]error),
	}
}

func (s *TestStore) Set(key string, value []byte) error {
	s.mu.Lock()
	s.sets[key]++
	err := s.failSets[key]
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Set(key, value)
}

func (s *TestStore) Remove(key string) error {
	s.mu.Lock()
	s.removes[key]++
	s.mu.Unlock()
	return s.MemoryStore.Remove(key)
}

func (s *TestStore) RecordSave(chunks, size int, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, SaveRecord{Chunks: chunks, Size: size, Hash: hash})
	return nil
}

// FailSet makes every Set of key return err. A nil err clears the fault.
func (s *TestStore) FailSet(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSets, key)
		return
	}
	s.failSets[key] = err
}

// Sets returns how many times key was written, including failed writes.
func (s *TestStore) Sets(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets[key]
}

// TotalSets returns the number of Set calls across all keys.
func (s *TestStore) TotalSets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.sets {
		n += c
	}
	return n
}

// Removes returns how many times key was removed.
func (s *TestStore) Removes(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removes[key]
}

// Saves returns the recorded saves in order.
func (s *TestStore) Saves() []SaveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveRecord(nil), s.saves...)
}

var (
	_ snip.Store        = (*TestStore)(nil)
	_ snip.SaveRecorder = (*TestStore)(nil)
)
