package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNavigation marks a page that could not be reached or timed out.
	ErrNavigation = errors.New("navigation failed")
	// ErrNoContent marks a page without the expected content landmark.
	ErrNoContent = errors.New("no content")
	// ErrDownload marks a failed asset download.
	ErrDownload = errors.New("download failed")
	// ErrUnsupported is returned by backends for operations they cannot perform.
	ErrUnsupported = errors.New("unsupported operation")
)

// EntryError records a failure while mirroring a single TOC entry.
type EntryError struct {
	Entry TocEntry
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %q (%s): %v", e.Op, e.Entry.Title, e.Entry.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// IsNavigation checks if an error is a navigation failure.
func IsNavigation(err error) bool {
	return errors.Is(err, ErrNavigation)
}
