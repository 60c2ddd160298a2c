// Package macro expands the [[%x(...)]] directives in snippet bodies.
//
// Stages run in a fixed order: embedded snippets, dates, page URL parts and
// finally the clipboard. Each stage only sees the output of the previous one
// and no stage re-runs an earlier one, so text produced late (a clipboard
// holding "[[%d(YYYY)]]", say) is inserted literally. Expansion is total: a
// directive that cannot be evaluated is left in the output untouched.
package macro

import (
	"context"
	"strings"

	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// Resolver looks snippets up by name for embedding. *tree.Tree satisfies it.
type Resolver interface {
	Snippet(name string) *tree.Snippet
}

// Clipboard reads the host clipboard.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
}

// Input is one expansion request.
type Input struct {
	// Text is the snippet source: plain text, or HTML for rich targets.
	Text string
	// Name is the snippet being expanded; it seeds the embed cycle guard.
	Name string
	// URL is the page the expansion happens on, for URL macros.
	URL string
	// Rich selects HTML sources for embedded snippets and escapes
	// clipboard text and URL parts.
	Rich bool
}

// Expander runs the macro pipeline.
type Expander struct {
	snippets  Resolver
	clock     snip.Clock
	clipboard Clipboard
	logger    snip.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithClock sets the clock used by date macros.
func WithClock(c snip.Clock) Option { return func(e *Expander) { e.clock = c } }

// WithClipboard enables the clipboard macro.
func WithClipboard(c Clipboard) Option { return func(e *Expander) { e.clipboard = c } }

// WithLogger sets the logger that records skipped directives.
func WithLogger(l snip.Logger) Option { return func(e *Expander) { e.logger = l } }

// New creates an Expander resolving embeds through snippets, which may be nil
// to disable embedding.
func New(snippets Resolver, opts ...Option) *Expander {
	e := &Expander{
		snippets: snippets,
		clock:    snip.RealClock{},
		logger:   snip.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand runs every stage, blocking on the clipboard if the text asks for
// it.
func (e *Expander) Expand(ctx context.Context, in Input) string {
	out := e.expandSync(in)
	if !HasClipboard(out) {
		return out
	}
	return e.substituteClipboard(ctx, out, in.Rich)
}

// ExpandAsync runs the synchronous stages and hands the result to done. When
// the clipboard macro is present done is called from a new goroutine once
// the clipboard read resolves; otherwise it is called before ExpandAsync
// returns. done is always called exactly once.
func (e *Expander) ExpandAsync(ctx context.Context, in Input, done func(string)) {
	out := e.expandSync(in)
	if !HasClipboard(out) {
		done(out)
		return
	}
	go func() {
		done(e.substituteClipboard(ctx, out, in.Rich))
	}()
}

func (e *Expander) expandSync(in Input) string {
	out := in.Text
	if !strings.Contains(out, "[[%") {
		return out
	}
	out = e.expandEmbeds(out, in.Name, in.Rich)
	out = e.expandDates(out)
	out = e.expandURLs(out, in.URL, in.Rich)
	return out
}

const clipboardToken = "[[%p]]"

// HasClipboard reports whether text contains the clipboard macro.
func HasClipboard(text string) bool {
	return strings.Contains(text, clipboardToken)
}

func (e *Expander) substituteClipboard(ctx context.Context, text string, rich bool) string {
	if e.clipboard == nil {
		e.logger.Debug("clipboard macro skipped", "reason", "no clipboard")
		return text
	}
	clip, err := e.clipboard.Read(ctx)
	if err != nil {
		e.logger.Warn("clipboard macro skipped", "error", err)
		return text
	}
	if rich {
		clip = tree.EscapeText(clip)
	}
	return strings.ReplaceAll(text, clipboardToken, clip)
}
