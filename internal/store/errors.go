package store

import (
	"errors"
	"fmt"

	"github.com/zjrosen/suiteloader/internal/eid"
)

var (
	// ErrNotFound matches ItemNotFoundError.
	ErrNotFound = errors.New("item not found")
	// ErrConflict matches ConflictError.
	ErrConflict = errors.New("item owned by another source")
)

// ItemNotFoundError is returned when no row exists for an id.
type ItemNotFoundError struct {
	ID eid.EID
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item not found: %s", e.ID)
}

func (e *ItemNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError is returned when an item is saved from a source file other
// than the one that owns its row, i.e. two files declare the same id.
type ConflictError struct {
	ID     eid.EID
	Owner  string
	Source string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("item %s is already defined in %s (also in %s)", e.ID, e.Owner, e.Source)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
