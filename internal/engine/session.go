// Package engine routes key events on one editable surface to the matcher,
// the suggestion session and the placeholder engine, and runs the shared
// insert pipeline.
package engine

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode"

	"snip-go/internal/macro"
	"snip-go/internal/matcher"
	"snip-go/internal/placeholder"
	"snip-go/internal/snip"
	"snip-go/internal/suggest"
	"snip-go/internal/tree"
)

// Snippets is the snippet set a Session expands from.
type Snippets interface {
	Snippet(name string) *tree.Snippet
	Snippets() []*tree.Snippet
}

// Action is what HandleKey did with an event.
type Action int

const (
	// PassThrough means the default action was applied, or none exists.
	PassThrough Action = iota
	Expanded
	Navigated
	Suggesting
	Dismissed
	Paired
)

func (a Action) String() string {
	switch a {
	case PassThrough:
		return "pass"
	case Expanded:
		return "expanded"
	case Navigated:
		return "navigated"
	case Suggesting:
		return "suggesting"
	case Dismissed:
		return "dismissed"
	case Paired:
		return "paired"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Session is the engine state for one focused surface. It owns at most one
// placeholder set and one suggestion session and is not safe for concurrent
// use.
type Session struct {
	id       string
	surface  snip.Surface
	url      string
	snippets Snippets
	expander *macro.Expander
	cfg      Config
	logger   snip.Logger

	placeholders *placeholder.Engine
	suggest      *suggest.Engine
	last         string
}

// NewSession creates a session for surface on the page at url.
func NewSession(id string, surface snip.Surface, url string, snippets Snippets, expander *macro.Expander, cfg Config, clock snip.Clock, logger snip.Logger) *Session {
	if logger == nil {
		logger = snip.NewNopLogger()
	}
	return &Session{
		id:           id,
		surface:      surface,
		url:          url,
		snippets:     snippets,
		expander:     expander,
		cfg:          cfg,
		logger:       logger,
		placeholders: placeholder.NewEngine(cfg.PlaceholderPolicy),
		suggest:      suggest.NewEngine(snippets, cfg.Suggest, clock),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Surface returns the surface the session edits.
func (s *Session) Surface() snip.Surface { return s.surface }

// Placeholders exposes the placeholder engine.
func (s *Session) Placeholders() *placeholder.Engine { return s.placeholders }

// Suggestions exposes the suggestion engine.
func (s *Session) Suggestions() *suggest.Engine { return s.suggest }

// LastExpanded returns the name of the most recently inserted snippet.
func (s *Session) LastExpanded() string { return s.last }

// Inert reports whether the page is blocklisted.
func (s *Session) Inert() bool { return s.cfg.Blocklist.Blocked(s.url) }

// HandleKey processes one key event, applying the key's default edit when
// nothing consumes it.
func (s *Session) HandleKey(ctx context.Context, k Key) (Action, error) {
	if s.Inert() {
		return PassThrough, s.applyDefault(k)
	}
	if s.suggest.Expired() {
		s.logger.Debug("suggestion session expired", "session", s.id)
		s.suggest.Cancel()
	}
	if s.suggest.Active() {
		return s.handleSuggesting(ctx, k)
	}

	switch {
	case s.cfg.Hotkey.Matches(k):
		act, err := s.Expand(ctx)
		if err != nil || act != PassThrough {
			return act, err
		}
	case k.name() == KeyTab && s.placeholders.Armed():
		ok, err := s.placeholders.Next()
		if err != nil {
			return PassThrough, err
		}
		if ok {
			return Navigated, nil
		}
	case k.name() == KeyEscape && s.placeholders.Armed():
		s.placeholders.Disarm()
		return Dismissed, nil
	case k.name() == KeyChar:
		return s.handleChar(k.Text)
	}
	return PassThrough, s.applyDefault(k)
}

func (s *Session) handleChar(text string) (Action, error) {
	if closing, ok := s.cfg.AutoPairs[text]; ok {
		return Paired, s.insertPair(text, closing)
	}
	if s.skipClosing(text) {
		return Paired, nil
	}
	if err := s.typeText(text); err != nil {
		return PassThrough, err
	}
	if s.cfg.SuggestEnabled && s.endsWithTrigger() {
		_, caret := s.surface.Selection()
		s.suggest.Start(caret - runeLen(s.suggest.Trigger()))
		return Suggesting, nil
	}
	return PassThrough, nil
}

func (s *Session) handleSuggesting(ctx context.Context, k Key) (Action, error) {
	switch k.name() {
	case KeyEscape:
		return Dismissed, s.suggest.Dismiss(s.surface)
	case KeyUp:
		s.suggest.Move(-1)
		return Suggesting, nil
	case KeyDown:
		s.suggest.Move(1)
		return Suggesting, nil
	case KeyTab, KeyEnter:
		if act, err := s.commit(ctx); act != PassThrough || err != nil {
			return act, err
		}
		return PassThrough, s.applyDefault(k)
	case KeyBackspace:
		if err := s.applyDefault(k); err != nil {
			return PassThrough, err
		}
		if s.suggest.Backspace() {
			return Suggesting, nil
		}
		return PassThrough, nil
	case KeySpace:
		s.suggest.Cancel()
		return PassThrough, s.applyDefault(k)
	case KeyChar:
		if k.Text == s.suggest.Trigger() {
			if act, err := s.commit(ctx); act != PassThrough || err != nil {
				return act, err
			}
			return PassThrough, s.typeText(k.Text)
		}
		if strings.IndexFunc(k.Text, unicode.IsSpace) >= 0 {
			s.suggest.Cancel()
			return PassThrough, s.typeText(k.Text)
		}
		if err := s.typeText(k.Text); err != nil {
			return PassThrough, err
		}
		s.suggest.Append(k.Text)
		return Suggesting, nil
	}
	s.suggest.Cancel()
	return PassThrough, s.applyDefault(k)
}

// commit inserts the selected candidate. With no candidates the session
// ends and PassThrough is returned.
func (s *Session) commit(ctx context.Context) (Action, error) {
	sn, start, end := s.suggest.Commit(s.surface)
	if sn == nil {
		return PassThrough, nil
	}
	return Expanded, s.insert(ctx, sn, start, end)
}

// Select commits the i-th candidate of the active suggestion session, as a
// click on it does.
func (s *Session) Select(ctx context.Context, i int) error {
	sn, start, end := s.suggest.CommitIndex(s.surface, i)
	if sn == nil {
		return nil
	}
	return s.insert(ctx, sn, start, end)
}

// Expand replaces the snippet name before the caret with its expansion. It
// returns PassThrough when no name matches.
func (s *Session) Expand(ctx context.Context) (Action, error) {
	if s.Inert() {
		return PassThrough, nil
	}
	m := matcher.FindTrigger(s.surface, s.snippets, s.cfg.Matcher)
	if m == nil {
		return PassThrough, nil
	}
	return Expanded, s.insert(ctx, m.Snippet, m.Start, m.End)
}

// Insert expands sn at the current selection.
func (s *Session) Insert(ctx context.Context, sn *tree.Snippet) error {
	s.suggest.Cancel()
	start, end := s.surface.Selection()
	return s.insert(ctx, sn, start, end)
}

// insert replaces [start, end) with the expansion of sn, puts the caret
// after it and arms placeholders found in the inserted range.
func (s *Session) insert(ctx context.Context, sn *tree.Snippet, start, end int) error {
	s.placeholders.Disarm()

	rich := s.surface.IsRichText()
	out := s.expander.Expand(ctx, macro.Input{
		Text: sn.Body.Source(rich),
		Name: sn.Name(),
		URL:  s.url,
		Rich: rich,
	})
	newEnd, err := s.surface.ReplaceRange(start, end, out)
	if err != nil {
		return fmt.Errorf("inserting snippet %q: %w", sn.Name(), err)
	}
	if err := s.surface.SetSelection(newEnd, newEnd); err != nil {
		return fmt.Errorf("placing caret after %q: %w", sn.Name(), err)
	}
	s.last = sn.Name()
	n := s.placeholders.Arm(s.surface, start, newEnd)
	s.logger.Debug("snippet expanded", "session", s.id, "snippet", sn.Name(), "placeholders", n)
	return nil
}

// Blur ends every session state without touching the surface.
func (s *Session) Blur() {
	s.suggest.Cancel()
	s.placeholders.Disarm()
}

func (s *Session) endsWithTrigger() bool {
	trigger := s.suggest.Trigger()
	_, caret := s.surface.Selection()
	n := runeLen(trigger)
	return caret >= n && s.surface.TextRange(caret-n, caret) == trigger
}

func (s *Session) insertPair(open, closing string) error {
	start, end := s.surface.Selection()
	selected := s.surface.TextRange(start, end)
	if _, err := s.surface.ReplaceRange(start, end, s.escape(open+selected+closing)); err != nil {
		return fmt.Errorf("inserting pair %q: %w", open+closing, err)
	}
	caret := start + runeLen(open)
	return s.surface.SetSelection(caret, caret+runeLen(selected))
}

// skipClosing steps over a closing character that is already next to the
// caret instead of typing a second one.
func (s *Session) skipClosing(text string) bool {
	start, end := s.surface.Selection()
	if start != end {
		return false
	}
	for _, closing := range s.cfg.AutoPairs {
		if closing == text && s.surface.TextRange(end, end+runeLen(text)) == text {
			caret := end + runeLen(text)
			return s.surface.SetSelection(caret, caret) == nil
		}
	}
	return false
}

// applyDefault performs the edit a key makes when the engine does not
// consume it.
func (s *Session) applyDefault(k Key) error {
	switch k.name() {
	case KeyChar, KeySpace:
		return s.typeText(k.printable())
	case KeyEnter:
		if s.surface.IsRichText() {
			return s.replaceSelection("<br>")
		}
		return s.replaceSelection("\n")
	case KeyBackspace:
		start, end := s.surface.Selection()
		if start == end {
			if start == 0 {
				return nil
			}
			start--
		}
		return s.replaceRange(start, end, "")
	}
	return nil
}

func (s *Session) typeText(text string) error {
	if text == "" {
		return nil
	}
	return s.replaceSelection(s.escape(text))
}

func (s *Session) escape(text string) string {
	if s.surface.IsRichText() {
		return html.EscapeString(text)
	}
	return text
}

func (s *Session) replaceSelection(content string) error {
	start, end := s.surface.Selection()
	return s.replaceRange(start, end, content)
}

func (s *Session) replaceRange(start, end int, content string) error {
	newEnd, err := s.surface.ReplaceRange(start, end, content)
	if err != nil {
		return err
	}
	return s.surface.SetSelection(newEnd, newEnd)
}

func runeLen(s string) int { return len([]rune(s)) }
