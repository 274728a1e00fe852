package sequence

import (
	"errors"
	"fmt"

	"gofi/event"
)

// Matches every error returned by Compile
var ErrCompile = errors.New("sequence: compile error")

// The run sequence is not a well formed expression
type ParseError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sequence: parse error at offset %d in %q: %s", e.Offset, e.Expr, e.Msg)
}

func (e *ParseError) Is(target error) bool { return target == ErrCompile }

// An identifier is used more than once in the run sequence
type DuplicateEventError struct {
	Name   string
	Offset int
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("sequence: event %q used more than once (offset %d)", e.Name, e.Offset)
}

func (e *DuplicateEventError) Is(target error) bool { return target == ErrCompile }

// An identifier in the run sequence does not reference a declared event
type UnknownEventError struct {
	Name   string
	Offset int
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("sequence: unknown event %q (offset %d)", e.Name, e.Offset)
}

func (e *UnknownEventError) Is(target error) bool { return target == ErrCompile }

// A Block event has no Unblock event at the same point later in the sequence
type UnmatchedBlockError struct {
	Name  string
	Point event.Point
}

func (e *UnmatchedBlockError) Error() string {
	return fmt.Sprintf("sequence: block %q has no matching unblock at %v", e.Name, e.Point)
}

func (e *UnmatchedBlockError) Is(target error) bool { return target == ErrCompile }
