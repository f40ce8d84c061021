// Package failure tags errors with the kind of failure that produced them so
// callers can tell a dead connection from a single unreadable file.
package failure

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Connection covers session establishment and teardown.
	Connection Kind = iota + 1
	// Listing covers directory listing and attribute lookups.
	Listing
	// IO covers read, hash, write and delete of a single file.
	IO
	// Persistence covers loading and saving the index.
	Persistence
	// Config covers invalid or missing configuration.
	Config
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Listing:
		return "listing"
	case IO:
		return "io"
	case Persistence:
		return "persistence"
	case Config:
		return "config"
	}
	return "unknown"
}

// Error is an error tagged with its Kind, the operation and the path involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err. A nil err returns nil so call sites can wrap unconditionally.
func New(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Is reports whether any error in err's chain carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// Retryable reports whether the failure is worth retrying with a fresh
// session. Only connection failures qualify.
func Retryable(err error) bool {
	return Is(err, Connection)
}
