package ir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Error is the error type surfaced at the file boundary.
//
// Categories:
//   - NotFound: missing file, missing metadata row, unknown uuid reference
//   - Validation: rejected before any mutation is attempted
//   - ConstraintViolation / DuplicateKey: rejected by the storage layer
//   - CorruptEncoding: malformed blob or illegal edge shape found on read
//   - MigrationFailure: a schema upgrade step could not complete
//
// None of these are retried. Recovery is up to the caller.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// UUIDs lists the pulses involved, if any.
	UUIDs []uuid.UUID

	// Err is the underlying cause (driver error, decode error).
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeValidation          ErrorCode = "VALIDATION"
	ErrCodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	ErrCodeDuplicateKey        ErrorCode = "DUPLICATE_KEY"
	ErrCodeCorruptEncoding     ErrorCode = "CORRUPT_ENCODING"
	ErrCodeMigrationFailure    ErrorCode = "MIGRATION_FAILURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.UUIDs) > 0 {
		ids := make([]string, len(e.UUIDs))
		for i, id := range e.UUIDs {
			ids[i] = id.String()
		}
		fmt.Fprintf(&b, " (uuids=%s)", strings.Join(ids, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFoundf creates a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a Validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// CorruptEncodingf creates a CorruptEncoding error.
func CorruptEncodingf(format string, args ...any) *Error {
	return &Error{Code: ErrCodeCorruptEncoding, Message: fmt.Sprintf(format, args...)}
}

// UnknownUUIDs creates a NotFound error naming the uuids that do not exist.
func UnknownUUIDs(ids []uuid.UUID) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "unknown uuid", UUIDs: ids}
}

// Wrap creates an error of the given code around a cause.
func Wrap(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsValidation returns true if err is a Validation error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsConstraintViolation returns true for constraint violations, including
// duplicate keys.
func IsConstraintViolation(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeConstraintViolation || code == ErrCodeDuplicateKey
}

// IsDuplicateKey returns true if err reports an already existing pulse uuid.
func IsDuplicateKey(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateKey
}

// IsCorruptEncoding returns true if err is a CorruptEncoding error.
func IsCorruptEncoding(err error) bool {
	return CodeOf(err) == ErrCodeCorruptEncoding
}

// IsMigrationFailure returns true if err is a MigrationFailure error.
func IsMigrationFailure(err error) bool {
	return CodeOf(err) == ErrCodeMigrationFailure
}
