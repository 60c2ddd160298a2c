package site

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewBlocklist(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		b := NewBlocklist([]string{"", "  ", "# comment", "*.bank.com"})
		if b.Len() != 1 {
			t.Fatalf("expected 1 pattern, got %d", b.Len())
		}
		if b.patterns[0].pattern != "*.bank.com" {
			t.Errorf("expected *.bank.com, got %s", b.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs host patterns", func(t *testing.T) {
		t.Parallel()
		b := NewBlocklist([]string{"docs.example.com", "mail.example.com/compose*"})
		if b.patterns[0].matchPath {
			t.Error("docs.example.com should not be a path pattern")
		}
		if !b.patterns[1].matchPath {
			t.Error("mail.example.com/compose* should be a path pattern")
		}
	})
}

func TestBlocklist_Blocked(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		url      string
		want     bool
	}{
		{"exact host", []string{"docs.example.com"}, "https://docs.example.com/a", true},
		{"host ignores port", []string{"localhost"}, "http://localhost:8080/", true},
		{"host is case-insensitive", []string{"Docs.Example.com"}, "https://DOCS.example.com", true},
		{"wildcard subdomain", []string{"*.bank.com"}, "https://online.bank.com/login", true},
		{"wildcard needs a subdomain", []string{"*.bank.com"}, "https://bank.com/", false},
		{"different host", []string{"docs.example.com"}, "https://example.com/docs", false},
		{"path pattern", []string{"mail.example.com/compose*"}, "https://mail.example.com/compose?to=x", true},
		{"path pattern other path", []string{"mail.example.com/compose*"}, "https://mail.example.com/inbox", false},
		{"path pattern on bare host", []string{"example.com/"}, "https://example.com", true},
		{"bad pattern skipped", []string{"[", "example.com"}, "https://example.com", true},
		{"no patterns", nil, "https://example.com", false},
		{"no host", []string{"*"}, "about:blank", false},
		{"empty url", []string{"*"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBlocklist(tt.patterns)
			if got := b.Blocked(tt.url); got != tt.want {
				t.Errorf("Blocked(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestBlocklist_Nil(t *testing.T) {
	var b *Blocklist
	if b.Blocked("https://example.com") {
		t.Error("nil Blocklist must not block")
	}
}

func TestParseBlocklistFile(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		got, err := ParseBlocklistFile(filepath.Join(t.TempDir(), "nope"))
		if err != nil || got != nil {
			t.Errorf("ParseBlocklistFile() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("reads lines", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "blocked")
		if err := os.WriteFile(name, []byte("# banks\n*.bank.com\n\nlocalhost\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := ParseBlocklistFile(name)
		if err != nil {
			t.Fatalf("ParseBlocklistFile() error = %v", err)
		}
		if b := NewBlocklist(got); b.Len() != 2 {
			t.Errorf("NewBlocklist() has %d patterns, want 2", b.Len())
		}
	})
}
