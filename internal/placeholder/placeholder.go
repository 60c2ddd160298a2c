// Package placeholder tracks %name% tokens in freshly inserted content and
// moves the selection through them on Tab.
package placeholder

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"snip-go/internal/snip"
)

// Pattern matches a placeholder token.
var Pattern = regexp.MustCompile(`%[^%\s]+%`)

// Policy decides what Tab does after the last placeholder.
type Policy string

const (
	// Cycle wraps around to the first remaining placeholder.
	Cycle Policy = "cycle"
	// Terminate disarms after the last placeholder.
	Terminate Policy = "terminate"
)

// ParsePolicy accepts the config spelling of a policy; empty means Cycle.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Cycle:
		return Cycle, nil
	case Terminate:
		return Terminate, nil
	default:
		return "", fmt.Errorf("unknown placeholder policy: %q", s)
	}
}

// Token is one placeholder occurrence at absolute offsets [Start, End).
type Token struct {
	Text  string
	Start int
	End   int
}

// Scan returns the placeholder tokens in text, with offsets relative to
// base, in document order.
func Scan(text string, base int) []Token {
	var out []Token
	for _, loc := range Pattern.FindAllStringIndex(text, -1) {
		start := base + utf8.RuneCountInString(text[:loc[0]])
		tok := text[loc[0]:loc[1]]
		out = append(out, Token{Text: tok, Start: start, End: start + utf8.RuneCountInString(tok)})
	}
	return out
}

// Engine is the Idle/Armed state machine. It holds at most one placeholder
// set; arming always discards the previous one.
type Engine struct {
	policy Policy

	surface  snip.Surface
	tokens   []string
	cursor   int
	start    int
	end      int
	armedLen int
}

// NewEngine creates an idle engine.
func NewEngine(policy Policy) *Engine {
	if policy == "" {
		policy = Cycle
	}
	return &Engine{policy: policy, cursor: -1}
}

// Arm scans the inserted range [start, end) of s for placeholders. It
// returns the number found; with none the engine stays idle. No placeholder
// is selected until the first Next.
func (e *Engine) Arm(s snip.Surface, start, end int) int {
	e.Disarm()
	found := Scan(s.TextRange(start, end), start)
	if len(found) == 0 {
		return 0
	}
	e.surface = s
	e.start, e.end = start, end
	e.armedLen = s.Len()
	e.tokens = make([]string, len(found))
	for i, t := range found {
		e.tokens[i] = t.Text
	}
	return len(found)
}

// Armed reports whether a placeholder set is active.
func (e *Engine) Armed() bool { return e.surface != nil }

// Tokens returns the placeholder texts in document order.
func (e *Engine) Tokens() []string { return append([]string(nil), e.tokens...) }

// Cursor is the index of the selected placeholder, or -1 before the first
// Next.
func (e *Engine) Cursor() int { return e.cursor }

// Disarm returns to Idle.
func (e *Engine) Disarm() {
	e.surface = nil
	e.tokens = nil
	e.cursor = -1
}

// Live re-reads the inserted region from the surface and maps every
// original placeholder to its current occurrence. Entries the user has
// overwritten map to nil. The region is assumed to have grown or shrunk by
// exactly the change in surface length since arming.
func (e *Engine) Live() []*Token {
	if !e.Armed() {
		return nil
	}
	end := e.end + (e.surface.Len() - e.armedLen)
	if end < e.start {
		end = e.start
	}
	live := Scan(e.surface.TextRange(e.start, end), e.start)

	out := make([]*Token, len(e.tokens))
	j := 0
	for i, text := range e.tokens {
		for k := j; k < len(live); k++ {
			if live[k].Text == text {
				tok := live[k]
				out[i] = &tok
				j = k + 1
				break
			}
		}
	}
	return out
}

// Next selects the following placeholder. It returns false, leaving the
// engine idle, when the set is exhausted: every placeholder has been filled
// in, or the Terminate policy ran past the last one.
func (e *Engine) Next() (bool, error) {
	if !e.Armed() {
		return false, nil
	}
	live := e.Live()
	n := len(live)
	for step := 1; step <= n; step++ {
		i := e.cursor + step
		if i >= n {
			if e.policy == Terminate {
				break
			}
			i %= n
		}
		if live[i] == nil {
			continue
		}
		if err := e.surface.SetSelection(live[i].Start, live[i].End); err != nil {
			e.Disarm()
			return false, fmt.Errorf("selecting placeholder %q: %w", live[i].Text, err)
		}
		e.cursor = i
		return true, nil
	}
	e.Disarm()
	return false, nil
}
