// Package suggest implements the trigger-character suggestion session: after
// the trigger is typed, further characters filter and rank snippet names
// until a candidate is committed or the session is cancelled.
package suggest

import (
	"time"
	"unicode/utf8"

	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// DefaultTrigger starts a session.
const DefaultTrigger = "."

// Source lists the snippets to rank. *tree.Tree satisfies it.
type Source interface {
	Snippets() []*tree.Snippet
}

// Options controls the engine.
type Options struct {
	Trigger     string
	Fuzzy       bool
	MaxResults  int
	IdleTimeout time.Duration
}

// Session is the state of one Buffering period.
type Session struct {
	// Anchor is the absolute offset of the trigger character.
	Anchor     int
	Buffer     string
	Candidates []Candidate
	Selected   int

	lastActive time.Time
}

// Engine is the Idle/Buffering state machine. It owns at most one session.
type Engine struct {
	source  Source
	opts    Options
	clock   snip.Clock
	session *Session
}

// NewEngine creates an idle engine.
func NewEngine(source Source, opts Options, clock snip.Clock) *Engine {
	if opts.Trigger == "" {
		opts.Trigger = DefaultTrigger
	}
	if clock == nil {
		clock = snip.RealClock{}
	}
	return &Engine{source: source, opts: opts, clock: clock}
}

// Trigger returns the configured trigger string.
func (e *Engine) Trigger() string { return e.opts.Trigger }

// Active reports whether a session is buffering.
func (e *Engine) Active() bool { return e.session != nil }

// Session returns the active session, or nil.
func (e *Engine) Session() *Session { return e.session }

// Start begins a session anchored at the trigger's offset, discarding any
// previous session.
func (e *Engine) Start(anchor int) {
	e.session = &Session{Anchor: anchor, lastActive: e.clock.Now()}
	e.rerank()
}

// Cancel ends the session without touching the surface.
func (e *Engine) Cancel() { e.session = nil }

// Expired reports whether the session has been idle longer than the
// configured timeout.
func (e *Engine) Expired() bool {
	if e.session == nil || e.opts.IdleTimeout <= 0 {
		return false
	}
	return e.clock.Now().Sub(e.session.lastActive) > e.opts.IdleTimeout
}

// Append adds typed text to the buffer and re-ranks.
func (e *Engine) Append(text string) {
	if e.session == nil {
		return
	}
	e.session.Buffer += text
	e.session.lastActive = e.clock.Now()
	e.rerank()
}

// Backspace shrinks the buffer by one character. When that would leave the
// buffer empty, or it already is, the session ends and Backspace returns
// false.
func (e *Engine) Backspace() bool {
	if e.session == nil {
		return false
	}
	buf := e.session.Buffer
	if utf8.RuneCountInString(buf) <= 1 {
		e.session = nil
		return false
	}
	_, size := utf8.DecodeLastRuneInString(buf)
	e.session.Buffer = buf[:len(buf)-size]
	e.session.lastActive = e.clock.Now()
	e.rerank()
	return true
}

// Move shifts the selection by delta, wrapping around the candidate list.
func (e *Engine) Move(delta int) {
	if e.session == nil || len(e.session.Candidates) == 0 {
		return
	}
	n := len(e.session.Candidates)
	e.session.Selected = ((e.session.Selected+delta)%n + n) % n
	e.session.lastActive = e.clock.Now()
}

// Span returns the absolute range covering the trigger and the buffer,
// ending at the live caret of s.
func (e *Engine) Span(s snip.Surface) (start, end int) {
	_, end = s.Selection()
	if e.session == nil {
		return end, end
	}
	n := utf8.RuneCountInString(e.opts.Trigger) + utf8.RuneCountInString(e.session.Buffer)
	start = max(end-n, 0)
	return start, end
}

// Commit ends the session and returns the selected snippet with the span to
// replace. It returns nil when there is nothing to commit.
func (e *Engine) Commit(s snip.Surface) (*tree.Snippet, int, int) {
	return e.CommitIndex(s, -1)
}

// CommitIndex is Commit for an explicitly chosen candidate, as when one is
// clicked. A negative index commits the current selection.
func (e *Engine) CommitIndex(s snip.Surface, i int) (*tree.Snippet, int, int) {
	if e.session == nil {
		return nil, 0, 0
	}
	if i < 0 {
		i = e.session.Selected
	}
	start, end := e.Span(s)
	cands := e.session.Candidates
	e.session = nil
	if i >= len(cands) {
		return nil, 0, 0
	}
	return cands[i].Snippet, start, end
}

// Dismiss deletes the trigger and buffer from s and ends the session.
func (e *Engine) Dismiss(s snip.Surface) error {
	if e.session == nil {
		return nil
	}
	start, end := e.Span(s)
	e.session = nil
	if start == end {
		return nil
	}
	_, err := s.ReplaceRange(start, end, "")
	return err
}

func (e *Engine) rerank() {
	var snippets []*tree.Snippet
	if e.source != nil {
		snippets = e.source.Snippets()
	}
	cands := Rank(snippets, e.session.Buffer, e.opts.Fuzzy)
	if e.opts.MaxResults > 0 && len(cands) > e.opts.MaxResults {
		cands = cands[:e.opts.MaxResults]
	}
	e.session.Candidates = cands
	e.session.Selected = 0
}
