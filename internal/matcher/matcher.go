// Package matcher finds a snippet name typed immediately before the caret.
package matcher

import (
	"strings"

	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// DefaultWindow is how many characters before the caret are examined.
const DefaultWindow = 50

// DefaultDelimiters separate words for delimited matching.
const DefaultDelimiters = " \t,.;:!?'\"()[]{}<>/\\|-+=*&^%$#@~`"

// Lookup resolves snippet names. *tree.Tree satisfies it.
type Lookup interface {
	Snippet(name string) *tree.Snippet
}

// Options controls matching.
type Options struct {
	// Window bounds the text examined; DefaultWindow when zero.
	Window int
	// Delimiters are the characters that may precede a match in delimited
	// mode. Newline always qualifies.
	Delimiters string
	// MatchDelimitedWord requires the match to start at the beginning of
	// the text or after a delimiter.
	MatchDelimitedWord bool
	// PreferLongest tries the longest suffix first. By default suffixes are
	// tried from length 1 upward and the shortest match wins.
	PreferLongest bool
}

// DefaultOptions returns delimited matching over the default window.
func DefaultOptions() Options {
	return Options{Window: DefaultWindow, Delimiters: DefaultDelimiters, MatchDelimitedWord: true}
}

// Match is a snippet name found before the caret.
type Match struct {
	Snippet *tree.Snippet
	// Start and End are absolute offsets of the typed name; End is the caret.
	Start int
	End   int
	// Text is the name as typed.
	Text string
}

// FindTrigger examines the text before the caret and returns the snippet
// whose name it ends with, or nil.
func FindTrigger(s snip.Surface, names Lookup, opts Options) *Match {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	w := s.TextWindow(window)
	runes := []rune(w.Text)[:w.Cursor]
	n := len(runes)
	caret := w.Start + n

	try := func(length int) *Match {
		candidate := string(runes[n-length:])
		sn := names.Snippet(candidate)
		if sn == nil {
			return nil
		}
		start := caret - length
		if opts.MatchDelimitedWord && !boundaryBefore(s, start, opts.Delimiters) {
			return nil
		}
		return &Match{Snippet: sn, Start: start, End: caret, Text: candidate}
	}

	if opts.PreferLongest {
		for length := n; length >= 1; length-- {
			if m := try(length); m != nil {
				return m
			}
		}
		return nil
	}
	for length := 1; length <= n; length++ {
		if m := try(length); m != nil {
			return m
		}
	}
	return nil
}

// boundaryBefore reports whether offset is the start of the surface or
// follows a delimiter or newline.
func boundaryBefore(s snip.Surface, offset int, delimiters string) bool {
	if offset <= 0 {
		return true
	}
	prev := s.TextRange(offset-1, offset)
	if prev == "" {
		return true
	}
	return prev == "\n" || prev == "\r" || strings.Contains(delimiters, prev)
}
