package library

import (
	"context"
	"sync"

	"snip-go/internal/snip"
)

// Saveable is implemented by *Service.
type Saveable interface {
	Save() (bool, error)
}

// Saver runs saves in the background and coalesces requests: a request made
// while a save is in flight marks the tree dirty and exactly one more save
// runs afterwards. Request never blocks.
type Saver struct {
	target Saveable
	logger snip.Logger

	mu      sync.Mutex
	running bool
	dirty   bool
	idle    chan struct{} // closed when the current run finishes
	lastErr error
	saves   int
}

// NewSaver creates a Saver for target.
func NewSaver(target Saveable, logger snip.Logger) *Saver {
	if logger == nil {
		logger = snip.NewNopLogger()
	}
	return &Saver{target: target, logger: logger}
}

// Request schedules a save.
func (s *Saver) Request() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.dirty = true
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	go s.run()
}

func (s *Saver) run() {
	for {
		wrote, err := s.target.Save()
		if err != nil {
			s.logger.Error("background save failed", "error", err)
		}

		s.mu.Lock()
		s.lastErr = err
		if wrote {
			s.saves++
		}
		if s.dirty {
			s.dirty = false
			s.mu.Unlock()
			continue
		}
		s.running = false
		close(s.idle)
		s.mu.Unlock()
		return
	}
}

// Flush waits for any in-flight and pending save and returns the error of
// the last one.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		err := s.lastErr
		s.mu.Unlock()
		return err
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Saves returns how many background saves wrote data.
func (s *Saver) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
