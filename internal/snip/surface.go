package snip

// Window is a slice of surface text ending at the caret.
type Window struct {
	// Text is at most the requested number of characters before the caret.
	Text string
	// Cursor is the caret offset within Text, in runes.
	Cursor int
	// Start is the absolute offset of the first rune of Text.
	Start int
}

// Surface is an editable element. All offsets are absolute rune offsets into
// the surface's plain text content, so the same matcher and placeholder code
// serves plain fields and rich documents.
type Surface interface {
	// TextWindow returns up to max characters immediately before the caret.
	TextWindow(max int) Window

	// ReplaceRange replaces [start, end) with content and returns the
	// absolute offset just past the inserted text. Rich surfaces parse
	// content as an HTML fragment; plain surfaces insert it verbatim.
	ReplaceRange(start, end int, content string) (int, error)

	// SetSelection selects [start, end); equal offsets place the caret.
	SetSelection(start, end int) error

	// Selection returns the current selection bounds.
	Selection() (start, end int)

	// TextRange returns the plain text in [start, end).
	TextRange(start, end int) string

	// Len returns the length of the plain text content in runes.
	Len() int

	// IsRichText reports whether the surface accepts HTML content.
	IsRichText() bool
}
