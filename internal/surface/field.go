package surface

import (
	"fmt"

	"snip-go/internal/snip"
)

// Field is a plain text input: a rune buffer with a selection. It models a
// textarea's value plus selectionStart/selectionEnd.
type Field struct {
	runes []rune
	start int
	end   int
}

// NewField creates a field holding text with the caret at the end.
func NewField(text string) *Field {
	r := []rune(text)
	return &Field{runes: r, start: len(r), end: len(r)}
}

// Text returns the whole field value.
func (f *Field) Text() string { return string(f.runes) }

func (f *Field) Len() int { return len(f.runes) }

func (f *Field) IsRichText() bool { return false }

func (f *Field) Selection() (int, int) { return f.start, f.end }

func (f *Field) TextWindow(max int) snip.Window {
	caret := f.start
	from := caret - max
	if from < 0 || max <= 0 {
		from = 0
	}
	text := string(f.runes[from:caret])
	return snip.Window{Text: text, Cursor: caret - from, Start: from}
}

func (f *Field) TextRange(start, end int) string {
	start, end = clampRange(start, end, len(f.runes))
	return string(f.runes[start:end])
}

func (f *Field) ReplaceRange(start, end int, content string) (int, error) {
	if start < 0 || end > len(f.runes) || start > end {
		return 0, fmt.Errorf("replace range [%d, %d) outside field of length %d", start, end, len(f.runes))
	}
	ins := []rune(content)
	out := make([]rune, 0, len(f.runes)-(end-start)+len(ins))
	out = append(out, f.runes[:start]...)
	out = append(out, ins...)
	out = append(out, f.runes[end:]...)
	f.runes = out
	newEnd := start + len(ins)
	f.start, f.end = newEnd, newEnd
	return newEnd, nil
}

func (f *Field) SetSelection(start, end int) error {
	if start < 0 || end > len(f.runes) || start > end {
		return fmt.Errorf("selection [%d, %d) outside field of length %d", start, end, len(f.runes))
	}
	f.start, f.end = start, end
	return nil
}

// Type inserts text at the caret, replacing any selection, the way a
// keystroke the engine did not handle would.
func (f *Field) Type(text string) {
	_, _ = f.ReplaceRange(f.start, f.end, text)
}

// Backspace deletes the selection, or the character before the caret.
func (f *Field) Backspace() {
	if f.start != f.end {
		_, _ = f.ReplaceRange(f.start, f.end, "")
		return
	}
	if f.start > 0 {
		_, _ = f.ReplaceRange(f.start-1, f.start, "")
	}
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

var _ snip.Surface = (*Field)(nil)
