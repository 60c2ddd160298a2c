package tree

import (
	"fmt"
	"sort"
)

// SortMode selects the sort key.
type SortMode string

const (
	SortAlphabetic SortMode = "alphabetic"
	SortTimestamp  SortMode = "timestamp"
)

// ParseSortMode accepts the config/CLI spellings of a sort mode.
func ParseSortMode(s string) (SortMode, error) {
	switch s {
	case "alphabetic", "name", "alpha":
		return SortAlphabetic, nil
	case "timestamp", "time", "date":
		return SortTimestamp, nil
	default:
		return "", fmt.Errorf("unknown sort mode: %q", s)
	}
}

// SortOptions controls Sort.
type SortOptions struct {
	Mode       SortMode
	Descending bool
	Recursive  bool
}

// Sort orders a folder's children. Folders and snippets are sorted as two
// separate stable sequences and then concatenated folders first.
func (t *Tree) Sort(f *Folder, opts SortOptions) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if _, _, err := t.locate(f); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	sortFolder(f, opts)
	t.index.rebuild(t.root)
	return nil
}

func sortFolder(f *Folder, opts SortOptions) {
	var folders, snippets []Node
	for _, c := range f.children {
		if c.Kind() == KindFolder {
			folders = append(folders, c)
		} else {
			snippets = append(snippets, c)
		}
	}
	less := lessFunc(opts)
	sort.SliceStable(folders, func(i, j int) bool { return less(folders[i], folders[j]) })
	sort.SliceStable(snippets, func(i, j int) bool { return less(snippets[i], snippets[j]) })
	f.children = append(folders, snippets...)

	if opts.Recursive {
		for _, c := range folders {
			sortFolder(c.(*Folder), opts)
		}
	}
}

func lessFunc(opts SortOptions) func(a, b Node) bool {
	var less func(a, b Node) bool
	if opts.Mode == SortTimestamp {
		less = func(a, b Node) bool { return a.Timestamp() < b.Timestamp() }
	} else {
		less = func(a, b Node) bool { return NameKey(a.Name()) < NameKey(b.Name()) }
	}
	if opts.Descending {
		return func(a, b Node) bool { return less(b, a) }
	}
	return less
}
