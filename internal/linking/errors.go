package linking

import (
	"errors"
	"fmt"

	"github.com/parsascontentcorner/redditlink/internal/models"
)

// ErrNotLinked is returned by Unlink when the pair was never recorded
var ErrNotLinked = errors.New("accounts are not linked")

// UnauthenticatedError is returned when the session lacks a completed login
// for Provider.
type UnauthenticatedError struct {
	Provider models.Provider
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("not authenticated with %s", e.Provider.DisplayName())
}

// StorageError wraps a failure of the link store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("link storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
