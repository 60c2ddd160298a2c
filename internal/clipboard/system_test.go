package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atotto/clipboard"
)

func TestSystemRead(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility on this host")
	}

	tests := []struct {
		name    string
		readAll func() (string, error)
		want    string
		wantErr bool
	}{
		{"text", func() (string, error) { return "copied", nil }, "copied", false},
		{"error", func() (string, error) { return "", errors.New("exit status 1") }, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &System{readAll: tt.readAll}
			got, err := s.Read(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Read() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSystemRead_Cancelled(t *testing.T) {
	if clipboard.Unsupported {
		t.Skip("no clipboard utility on this host")
	}

	block := make(chan struct{})
	defer close(block)
	s := &System{readAll: func() (string, error) {
		<-block
		return "late", nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() error = %v, want DeadlineExceeded", err)
	}
}

func TestSystemRead_Unsupported(t *testing.T) {
	if !clipboard.Unsupported {
		t.Skip("clipboard utility present")
	}
	if _, err := NewSystem().Read(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Read() error = %v, want ErrUnsupported", err)
	}
}
