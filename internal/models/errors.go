package models

import "fmt"

// ErrorKind classifies failures surfaced by the timeline engine. All kinds
// are recoverable at the caller.
type ErrorKind string

const (
	FetchFailed   ErrorKind = "FETCH_FAILED"
	DeleteFailed  ErrorKind = "DELETE_FAILED"
	RestoreFailed ErrorKind = "RESTORE_FAILED"
	UndoExpired   ErrorKind = "UNDO_EXPIRED"
	NothingToUndo ErrorKind = "NOTHING_TO_UNDO"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrFetchFailed   = &Error{Kind: FetchFailed}
	ErrDeleteFailed  = &Error{Kind: DeleteFailed}
	ErrRestoreFailed = &Error{Kind: RestoreFailed}
	ErrUndoExpired   = &Error{Kind: UndoExpired}
	ErrNothingToUndo = &Error{Kind: NothingToUndo}
)

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}
