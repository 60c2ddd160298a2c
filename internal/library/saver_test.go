package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// gatedTarget blocks each Save until released so tests can stack requests
// behind an in-flight save.
type gatedTarget struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedTarget() *gatedTarget {
	return &gatedTarget{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (g *gatedTarget) Save() (bool, error) {
	g.started <- struct{}{}
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return true, g.err
}

func (g *gatedTarget) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestSaver_Coalesces(t *testing.T) {
	target := newGatedTarget()
	s := NewSaver(target, nil)

	s.Request()
	<-target.started

	// Three requests during the in-flight save collapse into one more.
	s.Request()
	s.Request()
	s.Request()

	close(target.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := target.Calls(); got != 2 {
		t.Errorf("Save() called %d times, want 2", got)
	}
	if got := s.Saves(); got != 2 {
		t.Errorf("Saves() = %d, want 2", got)
	}
}

func TestSaver_FlushReportsError(t *testing.T) {
	target := newGatedTarget()
	target.err = errors.New("disk full")
	close(target.release)
	s := NewSaver(target, nil)

	s.Request()
	if err := s.Flush(context.Background()); err == nil || err.Error() != "disk full" {
		t.Errorf("Flush() error = %v, want disk full", err)
	}
}

func TestSaver_FlushIdle(t *testing.T) {
	s := NewSaver(newGatedTarget(), nil)
	if err := s.Flush(context.Background()); err != nil {
		t.Errorf("Flush() with nothing pending = %v", err)
	}
}

func TestSaver_FlushContextCancelled(t *testing.T) {
	target := newGatedTarget()
	s := NewSaver(target, nil)
	s.Request()
	<-target.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Flush() error = %v, want context.Canceled", err)
	}
	close(target.release)
	s.Flush(context.Background())
}

func TestSaver_WithService(t *testing.T) {
	svc, st := newTestService(t, 0)
	s := NewSaver(svc, nil)

	svc.AddFolder("work", "")
	s.Request()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if _, ok, _ := st.Get(MetaKey); !ok {
		t.Error("background save did not write the tree")
	}
}
