package errcodes

import (
	"errors"
	"fmt"
)

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns an error indicating the given resource doesn't exist.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// Extraction returns an error for a member file whose container couldn't be
// read. Scoped to one file; the rest of the candidate keeps going.
func Extraction(path string) error {
	return &Error{
		fmt.Sprintf("Couldn't extract metadata from %q.", path),
		"extraction_error",
	}
}

// SourceUnavailable returns an error for an adapter that failed on
// network, timeout, or auth. Non-fatal: the resolver falls through to the
// next priority level.
func SourceUnavailable(name string) error {
	return &Error{
		fmt.Sprintf("Source %q is unavailable.", name),
		"source_unavailable",
	}
}

// NoMatch returns an error indicating every adapter was exhausted without a
// value. The field stays unresolved; the entity is still usable.
func NoMatch(field string) error {
	return &Error{
		fmt.Sprintf("No match found for %q.", field),
		"no_match_found",
	}
}

// Persistence returns an error for a failed store write. In-memory state is
// preserved so a retry is lossless.
func Persistence(msg string) error {
	return &Error{
		msg,
		"persistence_error",
	}
}

func InvalidStatus(status string) error {
	return &Error{
		fmt.Sprintf("Unknown approval status %q.", status),
		"invalid_status",
	}
}

// IsCode reports whether err carries the given error code, regardless of the
// message it was constructed with.
func IsCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
