package surface

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"snip-go/internal/snip"
)

// RichDocument is a contentEditable region: an HTML node tree whose plain
// text offsets are computed by walking text nodes in document order. A <br>
// counts as a single "\n". Offsets are never cached against nodes; every
// operation re-walks the tree so edits between calls cannot leave stale
// positions behind.
type RichDocument struct {
	root  *html.Node
	start int
	end   int
}

// NewRichDocument parses fragment into a document with the caret at the end.
func NewRichDocument(fragment string) (*RichDocument, error) {
	d := &RichDocument{root: newContainer()}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		d.root.AppendChild(n)
	}
	d.start = d.Len()
	d.end = d.start
	return d, nil
}

func newContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// parseFragment turns content into detached nodes. Content without markup
// becomes a single text node so plain strings are never reinterpreted.
func parseFragment(content string) ([]*html.Node, error) {
	if content == "" {
		return nil, nil
	}
	if !strings.ContainsAny(content, "<&") {
		return []*html.Node{{Type: html.TextNode, Data: content}}, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(content), newContainer())
	if err != nil {
		return nil, fmt.Errorf("parsing html fragment: %w", err)
	}
	return nodes, nil
}

// leaf is a text-bearing node and its absolute offset.
type leaf struct {
	node   *html.Node
	start  int
	length int
}

func isBreak(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Br
}

func leafText(n *html.Node) string {
	if isBreak(n) {
		return "\n"
	}
	return n.Data
}

func (d *RichDocument) leaves() []leaf {
	var out []leaf
	pos := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				l := len([]rune(c.Data))
				out = append(out, leaf{node: c, start: pos, length: l})
				pos += l
			case isBreak(c):
				out = append(out, leaf{node: c, start: pos, length: 1})
				pos++
			case c.Type == html.ElementNode:
				walk(c)
			}
		}
	}
	walk(d.root)
	return out
}

// textLen is the plain text length contributed by n and its descendants.
func textLen(n *html.Node) int {
	switch {
	case n.Type == html.TextNode:
		return len([]rune(n.Data))
	case isBreak(n):
		return 1
	}
	total := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += textLen(c)
	}
	return total
}

// Text returns the plain text content.
func (d *RichDocument) Text() string {
	var b strings.Builder
	for _, l := range d.leaves() {
		b.WriteString(leafText(l.node))
	}
	return b.String()
}

// HTML renders the document content.
func (d *RichDocument) HTML() string {
	var b strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

// Locate maps an absolute offset to the text node holding it and the
// offset within that node. It returns nil when the offset falls on a <br>
// or outside the document.
func (d *RichDocument) Locate(offset int) (*html.Node, int) {
	for _, l := range d.leaves() {
		if offset >= l.start && offset <= l.start+l.length && l.node.Type == html.TextNode {
			return l.node, offset - l.start
		}
	}
	return nil, 0
}

func (d *RichDocument) Len() int { return textLen(d.root) }

func (d *RichDocument) IsRichText() bool { return true }

func (d *RichDocument) Selection() (int, int) { return d.start, d.end }

func (d *RichDocument) TextWindow(max int) snip.Window {
	runes := []rune(d.Text())
	caret := d.start
	if caret > len(runes) {
		caret = len(runes)
	}
	from := caret - max
	if from < 0 || max <= 0 {
		from = 0
	}
	return snip.Window{Text: string(runes[from:caret]), Cursor: caret - from, Start: from}
}

func (d *RichDocument) TextRange(start, end int) string {
	runes := []rune(d.Text())
	start, end = clampRange(start, end, len(runes))
	return string(runes[start:end])
}

func (d *RichDocument) SetSelection(start, end int) error {
	if n := d.Len(); start < 0 || end > n || start > end {
		return fmt.Errorf("selection [%d, %d) outside document of length %d", start, end, n)
	}
	d.start, d.end = start, end
	return nil
}

// ReplaceRange deletes the text in [start, end), trimming or removing the
// text nodes it spans, then inserts content parsed as an HTML fragment at
// start.
func (d *RichDocument) ReplaceRange(start, end int, content string) (int, error) {
	if n := d.Len(); start < 0 || end > n || start > end {
		return 0, fmt.Errorf("replace range [%d, %d) outside document of length %d", start, end, n)
	}
	nodes, err := parseFragment(content)
	if err != nil {
		return 0, err
	}

	d.deleteRange(start, end)
	parent, before := d.insertionPoint(start)
	inserted := 0
	for _, n := range nodes {
		parent.InsertBefore(n, before)
		inserted += textLen(n)
	}

	newEnd := start + inserted
	d.start, d.end = newEnd, newEnd
	return newEnd, nil
}

func (d *RichDocument) deleteRange(start, end int) {
	if start == end {
		return
	}
	for _, l := range d.leaves() {
		ls, le := l.start, l.start+l.length
		if le <= start || ls >= end {
			continue
		}
		if isBreak(l.node) {
			d.detach(l.node)
			continue
		}
		r := []rune(l.node.Data)
		a := max(0, start-ls)
		b := min(len(r), end-ls)
		rest := string(r[:a]) + string(r[b:])
		if rest == "" {
			d.detach(l.node)
		} else {
			l.node.Data = rest
		}
	}
}

// detach removes n and any ancestors the removal leaves empty.
func (d *RichDocument) detach(n *html.Node) {
	p := n.Parent
	p.RemoveChild(n)
	for p != d.root && p.FirstChild == nil {
		gp := p.Parent
		gp.RemoveChild(p)
		p = gp
	}
}

// insertionPoint finds where content for offset goes. A caret at the end of
// a text node inserts right after that node, inside the same element, the
// way a browser continues typing inside the current formatting.
func (d *RichDocument) insertionPoint(offset int) (parent, before *html.Node) {
	ls := d.leaves()
	if len(ls) == 0 {
		return d.root, nil
	}
	if offset == 0 {
		return ls[0].node.Parent, ls[0].node
	}
	for _, l := range ls {
		le := l.start + l.length
		if offset <= l.start || offset > le {
			continue
		}
		if l.node.Type == html.TextNode && offset < le {
			r := []rune(l.node.Data)
			k := offset - l.start
			right := &html.Node{Type: html.TextNode, Data: string(r[k:])}
			l.node.Data = string(r[:k])
			l.node.Parent.InsertBefore(right, l.node.NextSibling)
			return l.node.Parent, right
		}
		return l.node.Parent, l.node.NextSibling
	}
	return d.root, nil
}

// Type inserts escaped text at the caret, replacing any selection.
func (d *RichDocument) Type(text string) {
	_, _ = d.ReplaceRange(d.start, d.end, html.EscapeString(text))
}

// Backspace deletes the selection, or the character before the caret.
func (d *RichDocument) Backspace() {
	if d.start != d.end {
		_, _ = d.ReplaceRange(d.start, d.end, "")
		return
	}
	if d.start > 0 {
		_, _ = d.ReplaceRange(d.start-1, d.start, "")
	}
}

var _ snip.Surface = (*RichDocument)(nil)
