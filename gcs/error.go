// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gcs

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrNTooBig signifies that the filter can't handle N items.
	ErrNTooBig = ErrorKind("ErrNTooBig")

	// ErrPTooBig signifies that the filter can't handle `1/2**P`
	// collision probability.
	ErrPTooBig = ErrorKind("ErrPTooBig")

	// ErrMisserialized signifies a filter was misserialized and is missing
	// the N prefix of a serialized filter.
	ErrMisserialized = ErrorKind("ErrMisserialized")

	// ErrInvalidKey signifies that a block identifier is too short to
	// derive the filter key from.
	ErrInvalidKey = ErrorKind("ErrInvalidKey")

	// ErrCorruptFilter signifies that the bit stream of a filter ended
	// before all N values could be decoded.
	ErrCorruptFilter = ErrorKind("ErrCorruptFilter")

	// ErrUnresolvedReference signifies that the script locked by a
	// previous output or box could not be resolved while building a
	// filter.
	ErrUnresolvedReference = ErrorKind("ErrUnresolvedReference")

	// ErrMalformedChainData signifies that raw chain data handed to a
	// selector could not be decoded.
	ErrMalformedChainData = ErrorKind("ErrMalformedChainData")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to building or matching a filter.  It has
// full support for errors.Is and errors.As, so the caller can ascertain the
// specific reason for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// MakeError creates an Error given a set of arguments.
func MakeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
