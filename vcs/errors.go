package vcs

import (
	"errors"
	"fmt"

	"github.com/gusuku-oknw/peerdiffx/store"
)

// ErrInvalid marks requests rejected before touching history.
var ErrInvalid = errors.New("invalid request")

// NotFoundError names the missing entity. It matches store.ErrNotFound.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return store.ErrNotFound
}

// notFound converts store.ErrNotFound into a *NotFoundError and passes other
// errors through.
func notFound(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{What: what, ID: id}
	}
	return err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
