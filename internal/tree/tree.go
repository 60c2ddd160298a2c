package tree

import (
	"errors"
	"fmt"
)

// DefaultPosition asks Insert to apply the folders-first convention.
const DefaultPosition = -1

// Tree owns the root folder and keeps the name index in step with every
// structural mutation. It is not safe for concurrent use.
type Tree struct {
	root          *Folder
	index         *Index
	nameMaxLength int
	halted        bool
}

// Option configures a Tree.
type Option func(*Tree)

// WithNameMaxLength overrides the name length limit.
func WithNameMaxLength(n int) Option {
	return func(t *Tree) {
		if n > 0 {
			t.nameMaxLength = n
		}
	}
}

// New builds a tree around root. A nil root yields an empty tree. Names that
// collide case-insensitively are made unique with a numeric suffix so every
// node stays reachable by name.
func New(root *Folder, opts ...Option) *Tree {
	if root == nil {
		root = NewFolder(RootName, 0)
	}
	root.name = RootName
	t := &Tree{root: root, index: newIndex(), nameMaxLength: DefaultNameMaxLength}
	for _, opt := range opts {
		opt(t)
	}
	dedupeNames(root, t.nameMaxLength)
	t.index.rebuild(root)
	return t
}

// Root returns the root folder.
func (t *Tree) Root() *Folder { return t.root }

// NameMaxLength returns the configured name limit.
func (t *Tree) NameMaxLength() int { return t.nameMaxLength }

// Halted reports whether a consistency failure has frozen mutation.
func (t *Tree) Halted() bool { return t.halted }

// Recover rebuilds the index and lifts the mutation freeze if the tree is
// consistent again.
func (t *Tree) Recover() error {
	dedupeNames(t.root, t.nameMaxLength)
	t.index.rebuild(t.root)
	if err := t.Verify(); err != nil {
		return err
	}
	t.halted = false
	return nil
}

// Lookup resolves a node by name and kind through the index. It returns nil
// when the name is unknown.
func (t *Tree) Lookup(name string, k Kind) Node {
	p, ok := t.index.path(name, k)
	if !ok {
		return nil
	}
	if n := resolveNamed(t.root, p, name, k); n != nil {
		return n
	}
	// Stale entry: rebuild once and retry.
	t.index.rebuild(t.root)
	if p, ok = t.index.path(name, k); !ok {
		return nil
	}
	return resolveNamed(t.root, p, name, k)
}

func resolveNamed(root *Folder, p []int, name string, k Kind) Node {
	n, _ := resolve(root, p)
	if n != nil && n.Kind() == k && SameName(n.Name(), name) {
		return n
	}
	return nil
}

// Snippet is a typed Lookup for snippets.
func (t *Tree) Snippet(name string) *Snippet {
	if s, ok := t.Lookup(name, KindSnippet).(*Snippet); ok {
		return s
	}
	return nil
}

// Folder is a typed Lookup for folders.
func (t *Tree) Folder(name string) *Folder {
	if f, ok := t.Lookup(name, KindFolder).(*Folder); ok {
		return f
	}
	return nil
}

// Path returns the child-index path of n from the root.
func (t *Tree) Path(n Node) ([]int, error) {
	p, _, err := t.locate(n)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), p...), nil
}

// Verify checks that every node in the tree is reachable through the index
// at its actual position.
func (t *Tree) Verify() error {
	var bad error
	t.Walk(func(n Node, path []int) bool {
		p, ok := t.index.path(n.Name(), n.Kind())
		if !ok {
			bad = fmt.Errorf("%w: %s %q missing from index", ErrDataInconsistent, n.Kind(), n.Name())
			return false
		}
		got, _ := resolve(t.root, p)
		if got != n {
			bad = fmt.Errorf("%w: %s %q indexed at wrong path %v", ErrDataInconsistent, n.Kind(), n.Name(), p)
			return false
		}
		return true
	})
	return bad
}

// locate finds n's path and parent, rebuilding the index once if the
// recorded path is stale.
func (t *Tree) locate(n Node) ([]int, *Folder, error) {
	if n == nil {
		return nil, nil, ErrNotFound
	}
	for attempt := 0; attempt < 2; attempt++ {
		if p, ok := t.index.path(n.Name(), n.Kind()); ok {
			got, parent := resolve(t.root, p)
			if got == n {
				return p, parent, nil
			}
		}
		if attempt == 0 {
			t.index.rebuild(t.root)
		}
	}
	if t.root.Contains(n) {
		t.halted = true
		return nil, nil, fmt.Errorf("%w: %s %q", ErrDataInconsistent, n.Kind(), n.Name())
	}
	return nil, nil, fmt.Errorf("%w: %s %q", ErrNotFound, n.Kind(), n.Name())
}

func (t *Tree) checkWritable() error {
	if t.halted {
		return ErrDataInconsistent
	}
	return nil
}

// Insert places a detached node into the folder into. position is a child
// index, or DefaultPosition for the folders-first convention: folders go to
// the front, snippets right after the last folder.
func (t *Tree) Insert(n Node, into *Folder, position int) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if n == nil || into == nil {
		return errors.New("insert: node and destination are required")
	}
	if into.searchResult {
		return errors.New("insert: cannot insert into a search result")
	}
	if f, ok := n.(*Folder); ok && f.searchResult {
		return errors.New("insert: cannot insert a search result")
	}
	if _, _, err := t.locate(into); err != nil {
		return fmt.Errorf("insert: destination: %w", err)
	}
	if t.root.Contains(n) {
		return fmt.Errorf("insert: %s %q is already in the tree", n.Kind(), n.Name())
	}
	if err := t.checkSubtreeNames(n); err != nil {
		return err
	}

	t.place(n, into, position)
	t.index.rebuild(t.root)
	return nil
}

// checkSubtreeNames validates every name in a subtree about to be attached,
// both against the tree and against each other.
func (t *Tree) checkSubtreeNames(n Node) error {
	seen := map[Kind]map[string]bool{KindFolder: {}, KindSnippet: {}}
	var bad error
	visit := func(c Node) bool {
		if msg := t.CheckName(c.Name(), c.Kind(), nil); msg != "" {
			bad = &ValidationError{Message: msg}
			return false
		}
		key := NameKey(c.Name())
		if seen[c.Kind()][key] {
			bad = &ValidationError{Message: fmt.Sprintf("Duplicate %s name %q in inserted folder", kindLabel(c.Kind()), c.Name())}
			return false
		}
		seen[c.Kind()][key] = true
		return true
	}
	if !visit(n) {
		return bad
	}
	if f, ok := n.(*Folder); ok {
		walkFolder(f, nil, func(c Node, _ []int) bool { return visit(c) })
	}
	return bad
}

func (t *Tree) place(n Node, into *Folder, position int) {
	if position == DefaultPosition {
		if n.Kind() == KindFolder {
			position = 0
		} else {
			position = into.lastFolderIndex() + 1
		}
	}
	if position < 0 {
		position = 0
	}
	if position > len(into.children) {
		position = len(into.children)
	}
	into.children = append(into.children, nil)
	copy(into.children[position+1:], into.children[position:])
	into.children[position] = n
}

// Remove detaches n from the tree. The root cannot be removed.
func (t *Tree) Remove(n Node) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if n == Node(t.root) {
		return errors.New("remove: the root folder cannot be removed")
	}
	p, parent, err := t.locate(n)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	i := p[len(p)-1]
	parent.children = append(parent.children[:i], parent.children[i+1:]...)
	t.index.rebuild(t.root)
	return nil
}

// Move re-homes n under dest at the default position. Folders may not be
// moved into themselves or their descendants; such a move fails with a
// *CannotNestError and leaves the tree untouched.
func (t *Tree) Move(n Node, dest *Folder) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if n == Node(t.root) {
		return errors.New("move: the root folder cannot be moved")
	}
	p, parent, err := t.locate(n)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if _, _, err := t.locate(dest); err != nil {
		return fmt.Errorf("move: destination: %w", err)
	}
	if f, ok := n.(*Folder); ok && !f.CanNestUnder(dest) {
		return &CannotNestError{Object: f.Name(), Destination: dest.Name()}
	}

	i := p[len(p)-1]
	parent.children = append(parent.children[:i], parent.children[i+1:]...)
	t.place(n, dest, DefaultPosition)
	t.index.rebuild(t.root)
	return nil
}

// Rename validates and applies a new name.
func (t *Tree) Rename(n Node, newName string) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if n == Node(t.root) {
		return &ValidationError{Message: "The root folder cannot be renamed"}
	}
	if _, _, err := t.locate(n); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if msg := t.CheckName(newName, n.Kind(), n); msg != "" {
		return &ValidationError{Message: msg}
	}
	n.hdr().name = newName
	t.index.rebuild(t.root)
	return nil
}

// Walk visits every node below the root in document order. Returning false
// from fn stops the walk.
func (t *Tree) Walk(fn func(n Node, path []int) bool) {
	walkFolder(t.root, nil, fn)
}

func walkFolder(f *Folder, prefix []int, fn func(Node, []int) bool) bool {
	for i, c := range f.children {
		path := append(append([]int(nil), prefix...), i)
		if !fn(c, path) {
			return false
		}
		if sub, ok := c.(*Folder); ok {
			if !walkFolder(sub, path, fn) {
				return false
			}
		}
	}
	return true
}

// Snippets returns every snippet in document order.
func (t *Tree) Snippets() []*Snippet {
	var out []*Snippet
	t.Walk(func(n Node, _ []int) bool {
		if s, ok := n.(*Snippet); ok {
			out = append(out, s)
		}
		return true
	})
	return out
}

// Count returns the number of folders (excluding root) and snippets.
func (t *Tree) Count() (folders, snippets int) {
	t.Walk(func(n Node, _ []int) bool {
		if n.Kind() == KindFolder {
			folders++
		} else {
			snippets++
		}
		return true
	})
	return folders, snippets
}

// dedupeNames renames later duplicates in document order, keeping the
// suffixed names within max.
func dedupeNames(root *Folder, max int) {
	seen := map[Kind]map[string]bool{
		KindFolder:  {NameKey(root.name): true},
		KindSnippet: {},
	}
	walkFolder(root, nil, func(n Node, _ []int) bool {
		h := n.hdr()
		table := seen[n.Kind()]
		if table[NameKey(h.name)] {
			h.name = uniqueName(h.name, table, max)
		}
		table[NameKey(h.name)] = true
		return true
	})
}
