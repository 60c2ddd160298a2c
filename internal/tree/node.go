package tree

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RootName is the reserved name of the root folder.
const RootName = "Snippets"

// Kind distinguishes the two node variants.
type Kind int

const (
	KindFolder Kind = iota
	KindSnippet
)

// String returns the wire name of the kind ("folder" or "snip").
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindSnippet:
		return "snip"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire name back into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "folder":
		return KindFolder, true
	case "snip", "snippet":
		return KindSnippet, true
	default:
		return 0, false
	}
}

// Node is either a *Folder or a *Snippet.
type Node interface {
	Name() string
	Kind() Kind
	Timestamp() int64
	SetTimestamp(ms int64)

	hdr() *header
}

// header holds the fields shared by both variants. The name is only mutated
// through Tree.Rename so the index cannot go stale.
type header struct {
	name      string
	timestamp int64
}

func (h *header) Name() string          { return h.name }
func (h *header) Timestamp() int64      { return h.timestamp }
func (h *header) SetTimestamp(ms int64) { h.timestamp = ms }
func (h *header) hdr() *header          { return h }

// Folder is an ordered container of folders and snippets.
type Folder struct {
	header
	children []Node

	// searchResult marks synthetic folders produced by Tree.Search.
	searchResult bool
}

// NewFolder creates a detached folder.
func NewFolder(name string, timestamp int64, children ...Node) *Folder {
	return &Folder{
		header:   header{name: name, timestamp: timestamp},
		children: append([]Node(nil), children...),
	}
}

func (f *Folder) Kind() Kind { return KindFolder }

// Children returns a copy of the child list in storage order.
func (f *Folder) Children() []Node {
	return append([]Node(nil), f.children...)
}

// Len returns the number of direct children.
func (f *Folder) Len() int { return len(f.children) }

// Child returns the child at i, or nil if i is out of range.
func (f *Folder) Child(i int) Node {
	if i < 0 || i >= len(f.children) {
		return nil
	}
	return f.children[i]
}

// IsSearchResult reports whether the folder is a synthetic search result.
func (f *Folder) IsSearchResult() bool { return f.searchResult }

// Contains reports whether n is f or lies anywhere below f.
func (f *Folder) Contains(n Node) bool {
	if Node(f) == n {
		return true
	}
	for _, c := range f.children {
		if c == n {
			return true
		}
		if sub, ok := c.(*Folder); ok && sub.Contains(n) {
			return true
		}
	}
	return false
}

// CanNestUnder reports whether f may be placed inside dest. A folder can
// never be nested inside itself or one of its descendants.
func (f *Folder) CanNestUnder(dest *Folder) bool {
	return !f.Contains(dest)
}

// lastFolderIndex returns the index of the last folder child, or -1.
func (f *Folder) lastFolderIndex() int {
	last := -1
	for i, c := range f.children {
		if c.Kind() == KindFolder {
			last = i
		}
	}
	return last
}

// Snippet is a named, expandable body.
type Snippet struct {
	header
	Body Body
}

// NewSnippet creates a detached snippet.
func NewSnippet(name string, body Body, timestamp int64) *Snippet {
	return &Snippet{
		header: header{name: name, timestamp: timestamp},
		Body:   body,
	}
}

func (s *Snippet) Kind() Kind { return KindSnippet }

// NameKey normalizes a name for case-insensitive comparison and indexing.
func NameKey(name string) string {
	return cases.Lower(language.Und).String(name)
}

// SameName reports whether two names collide case-insensitively.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
