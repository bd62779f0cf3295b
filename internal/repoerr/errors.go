// Package repoerr defines the error taxonomy shared by the repository core.
// Every failure crossing a package boundary is an *Error tagged with a Kind;
// callers match with errors.Is against the exported sentinels instead of
// inspecting concrete store error types.
package repoerr

import (
	"errors"
	"fmt"
)

// Kind classifies a repository failure.
type Kind int

const (
	// KindInvalidPath marks a malformed path string. Never reaches the store.
	KindInvalidPath Kind = iota + 1
	// KindNotFound marks a node or item absent at time of lookup.
	KindNotFound
	// KindNoSuchWorkspace marks a workspace name outside the known set.
	KindNoSuchWorkspace
	// KindConstraintViolation marks a structural rule rejection: no admitting
	// node definition, an improperly removed mandatory node, or an explicit
	// sibling index on a destination path.
	KindConstraintViolation
	// KindAlreadyExists marks a UUID or destination-name collision.
	KindAlreadyExists
	// KindAccessDenied marks a permission predicate rejection.
	KindAccessDenied
	// KindSourceFailure marks an opaque persistent-store failure.
	KindSourceFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPath:
		return "invalid path"
	case KindNotFound:
		return "not found"
	case KindNoSuchWorkspace:
		return "no such workspace"
	case KindConstraintViolation:
		return "constraint violation"
	case KindAlreadyExists:
		return "already exists"
	case KindAccessDenied:
		return "access denied"
	case KindSourceFailure:
		return "source failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching. A sentinel matches any *Error carrying
// the same kind regardless of message or wrapped cause.
var (
	ErrInvalidPath         = &Error{kind: KindInvalidPath}
	ErrNotFound            = &Error{kind: KindNotFound}
	ErrNoSuchWorkspace     = &Error{kind: KindNoSuchWorkspace}
	ErrConstraintViolation = &Error{kind: KindConstraintViolation}
	ErrAlreadyExists       = &Error{kind: KindAlreadyExists}
	ErrAccessDenied        = &Error{kind: KindAccessDenied}
	ErrSourceFailure       = &Error{kind: KindSourceFailure}
)

// Error is a kind-tagged repository error.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Error() string {
	switch {
	case e.msg == "" && e.err == nil:
		return e.kind.String()
	case e.err == nil:
		return e.kind.String() + ": " + e.msg
	case e.msg == "":
		return e.kind.String() + ": " + e.err.Error()
	default:
		return e.kind.String() + ": " + e.msg + ": " + e.err.Error()
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is matches another *Error by kind, so errors.Is(err, ErrNotFound) works
// for any not-found error produced by this package.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.kind == t.kind
}

// KindOf extracts the kind from an error chain, or 0 when the chain carries
// no repository error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

// IsKind reports whether the error chain contains a repository error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
