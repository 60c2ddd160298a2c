package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by mutators given a node that is not in the tree.
	ErrNotFound = errors.New("node not found in tree")

	// ErrDataInconsistent means the index disagreed with the tree even after
	// a rebuild. The tree refuses further mutation until Recover is called.
	ErrDataInconsistent = errors.New("snippet data inconsistent")
)

// ValidationError carries a user-facing message about a rejected name.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CannotNestError is returned when a folder would end up inside itself or
// one of its descendants.
type CannotNestError struct {
	Object      string
	Destination string
}

func (e *CannotNestError) Error() string {
	return fmt.Sprintf("cannot nest folder %q inside %q: it is the folder itself or one of its subfolders", e.Object, e.Destination)
}
