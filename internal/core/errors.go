package core

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers at the public boundary.
type Code string

const (
	CodeValidationError Code = "validation"
	CodeResourceLimit   Code = "resource_limit"
	CodeNotFound        Code = "not_found"
	CodeTransientIO     Code = "transient_io"
	CodePersistence     Code = "persistence"
	CodeFatalEngine     Code = "fatal_engine"
	CodeConflict        Code = "conflict"
)

var (
	ErrGameNotFound        = &Error{Code: CodeNotFound, Msg: "game not found"}
	ErrSessionNotFound     = &Error{Code: CodeNotFound, Msg: "session not found"}
	ErrPageNotFound        = &Error{Code: CodeNotFound, Msg: "page not found"}
	ErrUserAlreadyPlaying  = &Error{Code: CodeConflict, Msg: "user already playing"}
	ErrSessionLimitReached = &Error{Code: CodeResourceLimit, Msg: "session limit reached"}
	ErrEngineNotReady      = &Error{Code: CodeFatalEngine, Msg: "browser engine not ready"}
	ErrEngineFailure       = &Error{Code: CodeFatalEngine, Msg: "browser engine failure"}
	ErrTransientIO         = &Error{Code: CodeTransientIO, Msg: "browser operation failed"}
	ErrPersistence         = &Error{Code: CodePersistence, Msg: "persistence failure"}
)

// Error is a classified error. Sentinel values above are matched with errors.Is
// even after wrapping with fmt.Errorf("...: %w").
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Wrap annotates err with a sentinel so both match errors.Is.
func Wrap(sentinel *Error, op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}

// CodeOf returns the classification of err, or "" if it has none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
