package tree

// Index maps lowercased names to the child-index path from the root, one
// table per kind. It owns no tree data and is rebuilt wholesale.
type Index struct {
	folders  map[string][]int
	snippets map[string][]int
}

func newIndex() *Index {
	return &Index{
		folders:  make(map[string][]int),
		snippets: make(map[string][]int),
	}
}

func (ix *Index) table(k Kind) map[string][]int {
	if k == KindFolder {
		return ix.folders
	}
	return ix.snippets
}

// rebuild walks the tree from root and records every node's path. The root
// itself is indexed with an empty path.
func (ix *Index) rebuild(root *Folder) {
	ix.folders = make(map[string][]int, len(ix.folders))
	ix.snippets = make(map[string][]int, len(ix.snippets))
	ix.folders[NameKey(root.name)] = []int{}
	ix.walk(root, nil)
}

func (ix *Index) walk(f *Folder, prefix []int) {
	for i, c := range f.children {
		path := make([]int, len(prefix)+1)
		copy(path, prefix)
		path[len(prefix)] = i
		// First occurrence wins; a later duplicate stays unindexed and is
		// reported by locate as an inconsistency.
		tbl := ix.table(c.Kind())
		if _, dup := tbl[NameKey(c.Name())]; !dup {
			tbl[NameKey(c.Name())] = path
		}
		if sub, ok := c.(*Folder); ok {
			ix.walk(sub, path)
		}
	}
}

// path returns the recorded path for a name, or nil,false.
func (ix *Index) path(name string, k Kind) ([]int, bool) {
	p, ok := ix.table(k)[NameKey(name)]
	return p, ok
}

// Len returns the number of indexed names of the given kind.
func (ix *Index) Len(k Kind) int {
	return len(ix.table(k))
}

// resolve walks path from root. It returns the node and its parent folder,
// or nil when the path does not exist.
func resolve(root *Folder, path []int) (node Node, parent *Folder) {
	var cur Node = root
	for _, i := range path {
		f, ok := cur.(*Folder)
		if !ok || i < 0 || i >= len(f.children) {
			return nil, nil
		}
		parent = f
		cur = f.children[i]
	}
	return cur, parent
}
