package xmldiff

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is matched by every MalformedDocumentError.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDocumentError reports an input that is not well-formed XML.
type MalformedDocumentError struct {
	Side string // "old" or "new"
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed %s document: %v", e.Side, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedDocument) hold.
func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}
