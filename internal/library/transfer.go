package library

import (
	"fmt"

	"snip-go/internal/tree"
)

// ImportMode selects how imported data combines with the existing tree.
type ImportMode int

const (
	// ImportMerge adds the imported nodes to the root, renaming clashes.
	ImportMerge ImportMode = iota
	// ImportReplace discards the existing tree.
	ImportReplace
)

// ImportResult summarizes an import.
type ImportResult struct {
	Format   tree.Format
	Folders  int
	Snippets int
	Renamed  []tree.Renamed
}

// Import decodes data in either encoding and combines it with the tree.
// Nothing changes when data cannot be decoded.
func (s *Service) Import(data []byte, mode ImportMode) (*ImportResult, error) {
	root, format, err := tree.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("importing: %w", err)
	}
	incoming := tree.New(root)
	res := &ImportResult{Format: format}
	res.Folders, res.Snippets = incoming.Count()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case ImportReplace:
		s.tree = s.newTree(incoming.Root())
	case ImportMerge:
		renamed, err := s.tree.Merge(incoming.Root())
		if err != nil {
			return nil, fmt.Errorf("importing: %w", err)
		}
		res.Renamed = renamed
	default:
		return nil, fmt.Errorf("importing: unknown mode %d", mode)
	}

	s.logger.Info("snippets imported", "format", format, "folders", res.Folders, "snippets", res.Snippets, "renamed", len(res.Renamed))
	return res, nil
}

// Export encodes the whole tree in the given format.
func (s *Service) Export(format tree.Format) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := tree.Encode(s.tree.Root(), format)
	if err != nil {
		return nil, fmt.Errorf("exporting: %w", err)
	}
	return data, nil
}
