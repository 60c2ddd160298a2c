package tree

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultNameMaxLength is the name length limit used when none is configured.
const DefaultNameMaxLength = 60

// CheckName validates a prospective name for a node of kind k. self is the
// node being renamed (nil for new nodes) and is ignored in the duplicate
// check. It returns "" when the name is acceptable, otherwise a message that
// can be shown to the user as-is.
func (t *Tree) CheckName(name string, k Kind, self Node) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "Empty name field"
	}
	if n := utf8.RuneCountInString(name); n > t.nameMaxLength {
		return fmt.Sprintf("Name cannot be more than %d characters long (currently %d)", t.nameMaxLength, n)
	}
	if existing := t.Lookup(name, k); existing != nil && existing != self {
		return fmt.Sprintf("A %s with name %q already exists (case-insensitive)", kindLabel(k), existing.Name())
	}
	return ""
}

func kindLabel(k Kind) string {
	if k == KindFolder {
		return "folder"
	}
	return "snippet"
}
