// Copyright 2024 The Erigon Payload Index Authors
// This file is part of erigon-payload-index.
//
// erigon-payload-index is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// erigon-payload-index is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with erigon-payload-index. If not, see <http://www.gnu.org/licenses/>.

// Package errs carries the error kinds propagated out of the field index
// subsystem. Predicate-shape mismatch is not an error — it is represented
// by filter/estimate returning ok=false — so it has no kind here.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way the engine above the index needs to
// react to it: retry the batch, reopen the index, or treat as a bug.
type Kind int

const (
	// KindBadInput means a value did not fit the field's domain (NaN
	// float, malformed UUID). Rejected at insert, not fatal for the batch.
	KindBadInput Kind = iota
	// KindServiceError means I/O failure, corruption, or version
	// mismatch. Fatal for the index instance; the engine must reopen it.
	KindServiceError
	// KindChecksumMismatch is raised by Load when a sealed file fails
	// its checksum; the engine treats it as corruption.
	KindChecksumMismatch
	// KindPreconditionFailed means caller misuse: a builder given ids out
	// of order, or a mutation of a sealed immutable index. Builders do not
	// detect Finalize before Init or AddPoint after Finalize.
	KindPreconditionFailed
)

func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "BadInput"
	case KindServiceError:
		return "ServiceError"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can type-switch
// on the category without parsing strings.
type Error struct {
	Kind  Kind
	Field string
	cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Field, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, field string, cause error) *Error {
	return &Error{Kind: kind, Field: field, cause: cause}
}

// BadInput rejects a value that does not fit the field's domain.
func BadInput(field string, cause error) error {
	return newError(KindBadInput, field, cause)
}

// BadInputf is the formatted-message convenience form of BadInput.
func BadInputf(field, format string, args ...any) error {
	return BadInput(field, fmt.Errorf(format, args...))
}

// ServiceError wraps an I/O or corruption failure with a stack trace,
// since these are the errors an operator ends up reading in a crash log.
func ServiceError(field string, cause error) error {
	return newError(KindServiceError, field, errors.WithStack(cause))
}

// ChecksumMismatch reports a sealed-file checksum failure during Load.
func ChecksumMismatch(field, path string) error {
	return newError(KindChecksumMismatch, field, fmt.Errorf("checksum mismatch in %s", path))
}

// PreconditionFailed reports builder/lifecycle misuse by the caller.
func PreconditionFailed(field, format string, args ...any) error {
	return newError(KindPreconditionFailed, field, fmt.Errorf(format, args...))
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
