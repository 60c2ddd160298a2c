// Package site decides whether the engine is active on a given page.
package site

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
)

// blockPattern is a parsed blocklist pattern with its matching strategy.
type blockPattern struct {
	pattern   string
	matchPath bool // true = match against host+path; false = match against host only
}

// Blocklist checks page URLs against a set of glob patterns.
// Patterns without '/' match against the page host only.
// Patterns with '/' match against host followed by the URL path.
type Blocklist struct {
	patterns []blockPattern
}

// NewBlocklist creates a Blocklist from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewBlocklist(rawPatterns []string) *Blocklist {
	var patterns []blockPattern
	for _, raw := range rawPatterns {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, blockPattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &Blocklist{patterns: patterns}
}

// Len returns the number of active patterns.
func (b *Blocklist) Len() int { return len(b.patterns) }

// Blocked reports whether the engine must stay inert on pageURL. URLs that
// cannot be parsed or carry no host are never blocked.
func (b *Blocklist) Blocked(pageURL string) bool {
	if b == nil || len(b.patterns) == 0 || pageURL == "" {
		return false
	}
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	full := host + u.EscapedPath()
	if !strings.HasPrefix(u.EscapedPath(), "/") {
		full = host + "/" + u.EscapedPath()
	}

	for _, p := range b.patterns {
		var matched bool
		if p.matchPath {
			matched, err = path.Match(p.pattern, full)
		} else {
			matched, err = path.Match(p.pattern, host)
		}
		if err != nil {
			// Bad pattern; skip it.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseBlocklistFile reads one pattern per line and returns the raw pattern
// strings. Returns nil and no error if the file does not exist.
func ParseBlocklistFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening blocklist file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading blocklist file: %w", err)
	}
	return patterns, nil
}
