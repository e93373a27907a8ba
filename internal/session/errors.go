package session

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a session failure for the UI layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoDatabase
	KindOpen
	KindQuery
	KindExec
	KindMissingInfo
	KindUnknownTable
	KindUnknownColumn
	KindRowRange
	KindNoRowID
	KindBadIdent
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindNoDatabase:    "no database",
	KindOpen:          "open",
	KindQuery:         "query",
	KindExec:          "exec",
	KindMissingInfo:   "missing information",
	KindUnknownTable:  "unknown table",
	KindUnknownColumn: "unknown column",
	KindRowRange:      "row out of range",
	KindNoRowID:       "no rowid",
	KindBadIdent:      "bad identifier",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every session operation that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause walk through to the engine error.
func (e *Error) Cause() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

// KindOf reports the Kind of err, or KindUnknown if err is not a session error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
