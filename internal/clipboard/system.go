// Package clipboard reads the host clipboard for the [[%p]] macro.
package clipboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when the host has no clipboard utility
// (for example a headless Linux box without xclip, xsel or wl-paste).
var ErrUnsupported = errors.New("clipboard not available on this host")

// System reads the operating system clipboard. The underlying read shells
// out to a platform tool, so it runs on its own goroutine and Read returns
// early if ctx is cancelled.
type System struct {
	readAll func() (string, error)
}

// NewSystem returns a reader for the host clipboard.
func NewSystem() *System {
	return &System{readAll: clipboard.ReadAll}
}

// Available reports whether a clipboard utility was found.
func (s *System) Available() bool {
	return !clipboard.Unsupported
}

func (s *System) Read(ctx context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", ErrUnsupported
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := s.readAll()
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("reading clipboard: %w", r.err)
		}
		return r.text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Write replaces the clipboard contents. The CLI uses it for expand --copy.
func (s *System) Write(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	return nil
}
