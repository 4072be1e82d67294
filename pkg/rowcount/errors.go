package rowcount

import (
	"errors"
	"fmt"
)

var (
	// ErrUnterminatedQuote is returned when the stream ends inside a quoted field.
	ErrUnterminatedQuote = errors.New("rowcount: unterminated quoted field")
	// ErrFinished is returned when a Counter is written to after Finish.
	ErrFinished = errors.New("rowcount: counter already finished")
)

// MalformedInputError reports input that cannot be split into records.
// Line and Offset locate the start of the offending quoted field.
type MalformedInputError struct {
	Line   int64
	Offset int64
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("malformed input: quoted field starting on line %d (byte %d): %v", e.Line, e.Offset, e.Err)
}

// Unwrap returns the underlying Err so MalformedInputError works with errors.Is.
func (e *MalformedInputError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IOError reports a failure to open or read the input stream.
type IOError struct {
	// Op is the failed operation, e.g. "open" or "read".
	Op string
	// Path is the input location, empty when unknown.
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s input: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying Err.
func (e *IOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
