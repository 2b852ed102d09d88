// Package errors defines the error taxonomy shared by the staging engine,
// the landing zone resolver and the CLI. Every error carries an ErrorCode so
// callers can classify failures with errors.Is against the exported sentinels.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// Input errors. Fatal, raised before any side effect.

	// CodeInvalidDestination indicates the destination is neither a path nor an identifier.
	CodeInvalidDestination ErrorCode = "INVALID_DESTINATION"

	// CodeParameter indicates the destination could not be resolved to a collection.
	CodeParameter ErrorCode = "PARAMETER"

	// CodeUserCanceled indicates the user declined to continue.
	CodeUserCanceled ErrorCode = "USER_CANCELED"

	// Build errors. Fatal for the whole job set.

	// CodeMissingFile indicates a data file or its checksum sidecar does not exist.
	CodeMissingFile ErrorCode = "MISSING_FILE"

	// CodeStaleInput indicates a source file changed after the blueprint was written.
	CodeStaleInput ErrorCode = "STALE_INPUT"

	// CodeValidation indicates malformed job input, e.g. a bad blueprint block.
	CodeValidation ErrorCode = "VALIDATION"

	// Execution errors.

	// CodeChecksum indicates a checksum could not be computed or did not match.
	CodeChecksum ErrorCode = "CHECKSUM"

	// CodeTransfer indicates a transient remote or transport failure.
	CodeTransfer ErrorCode = "TRANSFER"

	// CodeRemote indicates the landing zone service rejected or failed a request.
	CodeRemote ErrorCode = "REMOTE"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidDestination = &Error{Code: CodeInvalidDestination}
	ErrParameter          = &Error{Code: CodeParameter}
	ErrUserCanceled       = &Error{Code: CodeUserCanceled}
	ErrMissingFile        = &Error{Code: CodeMissingFile}
	ErrStaleInput         = &Error{Code: CodeStaleInput}
	ErrValidation         = &Error{Code: CodeValidation}
	ErrChecksum           = &Error{Code: CodeChecksum}
	ErrTransfer           = &Error{Code: CodeTransfer}
	ErrRemote             = &Error{Code: CodeRemote}
)

// Error is a classified failure with the operation and path it concerns.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Op is the operation that failed (e.g. "build", "put", "resolve").
	Op string

	// Path is the file, collection or identifier implicated, if any.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with a formatted message as its cause.
func New(code ErrorCode, op, path, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Op:   op,
		Path: path,
		Err:  fmt.Errorf(format, args...),
	}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(code ErrorCode, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Code: code,
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether err is a transient transfer failure.
// Checksum mismatches are never retried even when wrapped inside a transfer error.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChecksum) {
		return false
	}
	return errors.Is(err, ErrTransfer)
}
