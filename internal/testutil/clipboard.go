package testutil

import (
	"context"
	"sync"
)

// StubClipboard returns fixed contents and counts reads. Safe for concurrent
// use.
type StubClipboard struct {
	mu     sync.Mutex
	text   string
	err    error
	reads  int
	writes int
}

// NewStubClipboard creates a clipboard holding text. A non-nil err makes
// every read fail.
func NewStubClipboard(text string, err error) *StubClipboard {
	return &StubClipboard{text: text, err: err}
}

func (c *StubClipboard) Read(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.text, c.err
}

// Set replaces the clipboard contents.
func (c *StubClipboard) Set(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// Reads returns how many times Read was called.
func (c *StubClipboard) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Write replaces the clipboard contents, like Set, and records the write.
func (c *StubClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	c.writes++
	return nil
}

// Writes returns how many times Write succeeded.
func (c *StubClipboard) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}
