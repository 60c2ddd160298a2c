package tree

import (
	"fmt"
	"unicode/utf8"
)

// Renamed records a node renamed by Merge to keep names unique.
type Renamed struct {
	Kind Kind
	From string
	To   string
}

// Merge attaches every child of src under the root of t. Imported nodes
// whose names collide with the tree, or with each other, get a " (N)"
// suffix starting at 1. Names longer than the tree's limit are shortened,
// suffix included. Folders keep their relative order ahead of existing snippets;
// snippets are appended. src is emptied.
func (t *Tree) Merge(src *Folder) ([]Renamed, error) {
	if err := t.checkWritable(); err != nil {
		return nil, err
	}
	if src == nil || src == t.root || t.root.Contains(src) {
		return nil, fmt.Errorf("merge: source must be a detached folder")
	}

	taken := map[Kind]map[string]bool{KindFolder: {}, KindSnippet: {}}
	walkFolder(t.root, nil, func(n Node, _ []int) bool {
		taken[n.Kind()][NameKey(n.Name())] = true
		return true
	})
	taken[KindFolder][NameKey(t.root.name)] = true

	var renamed []Renamed
	walkFolder(src, nil, func(n Node, _ []int) bool {
		h := n.hdr()
		table := taken[n.Kind()]
		name := truncateName(h.name, t.nameMaxLength)
		if table[NameKey(name)] {
			name = uniqueName(h.name, table, t.nameMaxLength)
		}
		if name != h.name {
			renamed = append(renamed, Renamed{Kind: n.Kind(), From: h.name, To: name})
			h.name = name
		}
		table[NameKey(name)] = true
		return true
	})

	for _, c := range src.children {
		if c.Kind() == KindFolder {
			t.place(c, t.root, t.root.lastFolderIndex()+1)
		} else {
			t.place(c, t.root, len(t.root.children))
		}
	}
	src.children = nil
	t.index.rebuild(t.root)
	return renamed, nil
}

func uniqueName(base string, taken map[string]bool, max int) string {
	for i := 1; ; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate := truncateName(base, max-utf8.RuneCountInString(suffix)) + suffix
		if !taken[NameKey(candidate)] {
			return candidate
		}
	}
}

// truncateName cuts name to at most max runes.
func truncateName(name string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(name) <= max {
		return name
	}
	return string([]rune(name)[:max])
}
