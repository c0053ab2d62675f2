// Package apperr classifies failures so that each call site can decide whether
// an error is swallowed into a structured response or propagated to the client.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnavailable
	KindOperation
	KindUpstream
	KindDisabled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "store_unavailable"
	case KindOperation:
		return "store_operation"
	case KindUpstream:
		return "upstream"
	case KindDisabled:
		return "disabled"
	default:
		return "internal"
	}
}

// Error carries the kind of a failure, the operation that produced it and the
// underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error. A nil cause is allowed for kinds that stand on their own,
// such as not-found.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return E(KindValidation, op, fmt.Errorf(format, args...))
}

func NotFound(op, format string, args ...any) *Error {
	return E(KindNotFound, op, fmt.Errorf(format, args...))
}

func Unavailable(op string, err error) *Error { return E(KindUnavailable, op, err) }

func Operation(op string, err error) *Error { return E(KindOperation, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
