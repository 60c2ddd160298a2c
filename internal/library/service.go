// Package library is the service layer over the snippet tree: it loads and
// saves the tree through a snip.Store, serializes access for concurrent
// callers, and implements the user-level operations the CLI and bridge
// expose.
package library

import (
	"errors"
	"fmt"
	"sync"

	"snip-go/internal/snip"
	"snip-go/internal/tree"
)

// Service owns the tree and its persistence. All methods are safe for
// concurrent use.
type Service struct {
	mu     sync.Mutex
	store  snip.Store
	tree   *tree.Tree
	clock  snip.Clock
	logger snip.Logger

	format        tree.Format
	nameMaxLength int

	// Meta of the last load or save, used to skip unchanged saves and to
	// remove the superseded generation of chunks.
	saved meta
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for node timestamps.
func WithClock(c snip.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l snip.Logger) Option { return func(s *Service) { s.logger = l } }

// WithFormat selects the encoding written on save.
func WithFormat(f tree.Format) Option { return func(s *Service) { s.format = f } }

// WithNameMaxLength sets the name length limit.
func WithNameMaxLength(n int) Option { return func(s *Service) { s.nameMaxLength = n } }

// New creates a Service over store holding an empty tree. Call Load to read
// the stored tree.
func New(store snip.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  snip.RealClock{},
		logger: snip.NewNopLogger(),
		format: tree.FormatObject,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tree = s.newTree(nil)
	return s
}

func (s *Service) newTree(root *tree.Folder) *tree.Tree {
	if root == nil {
		root = tree.NewFolder(tree.RootName, s.now())
	}
	return tree.New(root, tree.WithNameMaxLength(s.nameMaxLength))
}

func (s *Service) now() int64 {
	return snip.Millis(s.clock.Now())
}

// Load replaces the in-memory tree with the stored one. An empty store
// yields an empty tree.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, m, ok, err := readTree(s.store)
	if err != nil {
		return fmt.Errorf("loading snippets: %w", err)
	}
	if !ok {
		s.tree = s.newTree(nil)
		s.saved = meta{}
		s.logger.Debug("no stored snippets, starting empty")
		return nil
	}

	root, format, err := tree.Decode(data)
	if err != nil {
		return fmt.Errorf("loading snippets: %w", err)
	}
	s.tree = s.newTree(root)
	s.saved = m
	if m.Chunks == 0 {
		// Legacy single-key tree: force the next save to migrate it.
		s.saved.Hash = ""
	}

	folders, snippets := s.tree.Count()
	s.logger.Info("snippets loaded", "format", format, "chunks", m.Chunks, "folders", folders, "snippets", snippets)
	return nil
}

// Save writes the tree to the store unless it is unchanged since the last
// load or save. It reports whether anything was written.
func (s *Service) Save() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Service) saveLocked() (bool, error) {
	data, err := tree.Encode(s.tree.Root(), s.format)
	if err != nil {
		return false, fmt.Errorf("encoding snippets: %w", err)
	}
	hash := Hash(data)
	if hash == s.saved.Hash {
		s.logger.Debug("snippets unchanged, skipping save", "hash", hash)
		return false, nil
	}

	m, err := writeTree(s.store, data, s.format, s.saved)
	if err != nil {
		return false, fmt.Errorf("saving snippets: %w", err)
	}
	s.saved = m
	s.logger.Info("snippets saved", "gen", m.Gen, "chunks", m.Chunks, "size", m.Size, "hash", m.Hash)
	return true, nil
}

// View runs fn with the tree under the service lock. fn must not retain
// the tree or mutate it.
func (s *Service) View(fn func(t *tree.Tree)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tree)
}

// update runs fn under the lock. When fn fails with ErrDataInconsistent the
// tree is recovered and fn retried once.
func (s *Service) update(fn func(t *tree.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := fn(s.tree)
	if errors.Is(err, tree.ErrDataInconsistent) {
		s.logger.Warn("tree inconsistent, rebuilding index", "error", err)
		if rerr := s.tree.Recover(); rerr != nil {
			return fmt.Errorf("%w (recovery failed: %v)", err, rerr)
		}
		err = fn(s.tree)
	}
	return err
}

// Snippet returns the snippet with the given name, or nil.
func (s *Service) Snippet(name string) *tree.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Snippet(name)
}

// Snippets returns every snippet in document order.
func (s *Service) Snippets() []*tree.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Snippets()
}

// Count returns the number of folders (excluding the root) and snippets.
func (s *Service) Count() (folders, snippets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Count()
}

// folder resolves a destination folder name; "" is the root.
func folder(t *tree.Tree, name string) (*tree.Folder, error) {
	if name == "" {
		return t.Root(), nil
	}
	f := t.Folder(name)
	if f == nil {
		return nil, fmt.Errorf("folder %q: %w", name, tree.ErrNotFound)
	}
	return f, nil
}

// node resolves a node by name and kind.
func node(t *tree.Tree, name string, k tree.Kind) (tree.Node, error) {
	n := t.Lookup(name, k)
	if n == nil {
		return nil, fmt.Errorf("%s %q: %w", k, name, tree.ErrNotFound)
	}
	return n, nil
}

// AddSnippet creates a snippet in the named folder ("" for the root).
func (s *Service) AddSnippet(name string, body tree.Body, folderName string) (*tree.Snippet, error) {
	var sn *tree.Snippet
	err := s.update(func(t *tree.Tree) error {
		dest, err := folder(t, folderName)
		if err != nil {
			return err
		}
		sn = tree.NewSnippet(name, body, s.now())
		return t.Insert(sn, dest, tree.DefaultPosition)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("snippet added", "name", name, "folder", folderName)
	return sn, nil
}

// AddFolder creates a folder inside parent ("" for the root).
func (s *Service) AddFolder(name, parent string) (*tree.Folder, error) {
	var f *tree.Folder
	err := s.update(func(t *tree.Tree) error {
		dest, err := folder(t, parent)
		if err != nil {
			return err
		}
		f = tree.NewFolder(name, s.now())
		return t.Insert(f, dest, tree.DefaultPosition)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("folder added", "name", name, "parent", parent)
	return f, nil
}

// Edit replaces a snippet's body and refreshes its timestamp.
func (s *Service) Edit(name string, body tree.Body) error {
	return s.update(func(t *tree.Tree) error {
		sn := t.Snippet(name)
		if sn == nil {
			return fmt.Errorf("snippet %q: %w", name, tree.ErrNotFound)
		}
		sn.Body = body
		sn.SetTimestamp(s.now())
		return nil
	})
}

// Remove deletes a node and, for folders, everything below it.
func (s *Service) Remove(name string, k tree.Kind) error {
	err := s.update(func(t *tree.Tree) error {
		n, err := node(t, name, k)
		if err != nil {
			return err
		}
		return t.Remove(n)
	})
	if err == nil {
		s.logger.Info("removed", "kind", k, "name", name)
	}
	return err
}

// Move re-homes a node under the named folder ("" for the root).
func (s *Service) Move(name string, k tree.Kind, to string) error {
	return s.update(func(t *tree.Tree) error {
		n, err := node(t, name, k)
		if err != nil {
			return err
		}
		dest, err := folder(t, to)
		if err != nil {
			return err
		}
		return t.Move(n, dest)
	})
}

// Rename renames a node and refreshes its timestamp.
func (s *Service) Rename(oldName, newName string, k tree.Kind) error {
	return s.update(func(t *tree.Tree) error {
		n, err := node(t, oldName, k)
		if err != nil {
			return err
		}
		if err := t.Rename(n, newName); err != nil {
			return err
		}
		n.SetTimestamp(s.now())
		return nil
	})
}

// Sort orders the named folder ("" for the root).
func (s *Service) Sort(folderName string, opts tree.SortOptions) error {
	return s.update(func(t *tree.Tree) error {
		f, err := folder(t, folderName)
		if err != nil {
			return err
		}
		return t.Sort(f, opts)
	})
}

// Search returns the ranked matches for text.
func (s *Service) Search(text string) []tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Search(text).Children()
}

// Path returns the folder names leading to n, root first, excluding n.
func (s *Service) Path(n tree.Node) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.tree.Path(n)
	if err != nil {
		return nil, err
	}
	names := []string{s.tree.Root().Name()}
	cur := s.tree.Root()
	for _, i := range p[:max(len(p)-1, 0)] {
		next, ok := cur.Child(i).(*tree.Folder)
		if !ok {
			break
		}
		names = append(names, next.Name())
		cur = next
	}
	return names, nil
}
