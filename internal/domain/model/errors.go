package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrMalformedStoredValue is returned when stored bytes do not decode
	// into the expected document shape.
	ErrMalformedStoredValue = errors.New("malformed stored value")

	// ErrVersionConflict is returned by conditional writes when the key
	// advanced past the expected sequence.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidField is returned when a record field cannot be stored as
	// JSON text without being altered, such as a string that is not UTF-8.
	ErrInvalidField = errors.New("invalid field")
)

// NotFoundError reports a key with no current value.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Review %s does not exist", e.Key)
}

// Is lets errors.Is(err, ErrNotFound) succeed for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
