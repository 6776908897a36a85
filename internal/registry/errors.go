package registry

import (
	"errors"
	"fmt"

	"github.com/zjrosen/suiteloader/internal/eid"
)

var (
	// ErrDuplicate matches DuplicateRegistrationError.
	ErrDuplicate = errors.New("item already registered")
	// ErrNotFound matches NotFoundError.
	ErrNotFound = errors.New("item not found")
)

// DuplicateRegistrationError is returned when an item is registered under an
// id that is already resolved. It indicates duplicate ids in the source set.
type DuplicateRegistrationError struct {
	ID eid.EID
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("item '%s' already registered, check for duplicate ids in the source files", e.ID)
}

func (e *DuplicateRegistrationError) Is(target error) bool {
	return target == ErrDuplicate
}

// NotFoundError is returned when an id is not currently resolved.
type NotFoundError struct {
	ID eid.EID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item '%s' not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
