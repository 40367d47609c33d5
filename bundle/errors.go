package bundle

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrSinkUnwritable   = errors.New("output unwritable")
)

// SourceError reports a source that could not be opened or read to completion.
// Line is the 1-based line being read when the failure happened, 0 for open errors.
type SourceError struct {
	Name string
	Line int
	Err  error
}

func (e *SourceError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v: %s line %d: %v", ErrSourceUnreadable, e.Name, e.Line, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrSourceUnreadable, e.Name, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnreadable, e.Err}
}

// SinkError reports a failure to create, write or finalize the output.
type SinkError struct {
	Path string // empty when writing to a caller supplied io.Writer
	Err  error
}

func (e *SinkError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", ErrSinkUnwritable, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrSinkUnwritable, e.Path, e.Err)
}

func (e *SinkError) Unwrap() []error {
	return []error{ErrSinkUnwritable, e.Err}
}
