package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Rich envelope kinds.
const (
	RichKind      = "rich"
	RichTableKind = "rich-table"
)

// RichContent is the envelope stored for snippets authored in a rich editor.
// Delta is the editor's own document model and is passed through untouched.
type RichContent struct {
	Kind  string          `json:"kind"`
	HTML  string          `json:"html"`
	Delta json.RawMessage `json:"delta"`
}

// Body is the content of a snippet: plain text, or a rich envelope when Rich
// is non-nil.
type Body struct {
	Text string
	Rich *RichContent
}

// PlainBody wraps plain text.
func PlainBody(text string) Body {
	return Body{Text: text}
}

// RichBody wraps an HTML fragment and optional delta.
func RichBody(htmlText string, delta json.RawMessage) Body {
	return Body{Rich: &RichContent{Kind: RichKind, HTML: htmlText, Delta: delta}}
}

// TableBody wraps a table fragment; tables are never parsed into a delta.
func TableBody(htmlText string) Body {
	return Body{Rich: &RichContent{Kind: RichTableKind, HTML: htmlText}}
}

// IsRich reports whether the body carries a rich envelope.
func (b Body) IsRich() bool { return b.Rich != nil }

// PlainText returns the body as plain text, stripping markup from rich bodies.
func (b Body) PlainText() string {
	if b.Rich == nil {
		return b.Text
	}
	return StripTags(b.Rich.HTML)
}

// Source returns the text to insert into a surface. Rich surfaces receive
// the HTML of rich bodies and plain bodies rendered by EscapeText; plain
// surfaces receive plain text.
func (b Body) Source(richTarget bool) string {
	switch {
	case !richTarget:
		return b.PlainText()
	case b.Rich != nil:
		return b.Rich.HTML
	default:
		return EscapeText(b.Text)
	}
}

// EscapeText renders plain text as an HTML fragment that displays the same
// characters, with line breaks as <br>.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

// WithSource returns a copy of b whose insertable text is replaced by s.
func (b Body) WithSource(s string) Body {
	if b.Rich == nil {
		return Body{Text: s}
	}
	rc := *b.Rich
	rc.HTML = s
	return Body{Rich: &rc}
}

// Equal compares two bodies semantically. Deltas are compared after
// compaction so whitespace differences do not matter.
func (b Body) Equal(o Body) bool {
	if (b.Rich == nil) != (o.Rich == nil) {
		return false
	}
	if b.Rich == nil {
		return b.Text == o.Text
	}
	if b.Rich.Kind != o.Rich.Kind || b.Rich.HTML != o.Rich.HTML {
		return false
	}
	return compactJSON(b.Rich.Delta) == compactJSON(o.Rich.Delta)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// MarshalJSON encodes plain bodies as a JSON string and rich bodies as the
// {kind, html, delta} envelope.
func (b Body) MarshalJSON() ([]byte, error) {
	if b.Rich == nil {
		return marshal(b.Text)
	}
	env := struct {
		Kind  string          `json:"kind"`
		HTML  string          `json:"html"`
		Delta json.RawMessage `json:"delta"`
	}{Kind: b.Rich.Kind, HTML: b.Rich.HTML, Delta: b.Rich.Delta}
	if len(env.Delta) == 0 {
		env.Delta = json.RawMessage("null")
	}
	return marshal(env)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (b *Body) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = Body{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding plain body: %w", err)
		}
		*b = Body{Text: s}
		return nil
	}
	var env RichContent
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding rich body: %w", err)
	}
	if env.Kind == "" {
		env.Kind = RichKind
	}
	if string(env.Delta) == "null" {
		env.Delta = nil
	}
	*b = Body{Rich: &env}
	return nil
}

// blockElements end a line when stripping markup.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}

// StripTags returns the text content of an HTML fragment. Line breaks and
// block boundaries become newlines; table cells are tab separated.
func StripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	var out strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimRight(out.String(), "\n")
			}
			return out.String()
		case html.TextToken:
			out.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				out.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch {
			case string(name) == "td" || string(name) == "th":
				out.WriteByte('\t')
			case blockElements[string(name)]:
				out.WriteByte('\n')
			}
		}
	}
}
