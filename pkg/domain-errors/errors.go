// Package domainerrors carries typed, coded errors across layer boundaries.
// Stores return sentinel errors; services wrap them here with the operation
// name attached so callers and the transport layer can branch on the code
// without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers. The taxonomy is small on purpose:
// retry decisions and user messaging only need these buckets.
type Code string

const (
	// CodeNotFound: record or merge candidate missing. Operation aborted
	// cleanly with no writes.
	CodeNotFound Code = "not_found"
	// CodeAdapter: underlying store I/O failed. All engine operations are
	// idempotent, so a retry is safe.
	CodeAdapter Code = "adapter_error"
	// CodePartialConsistency: relink or loser delete failed after the merged
	// winner was persisted. Reported, never retried automatically.
	CodePartialConsistency Code = "partial_consistency"
	// CodeInvalidTransition: lifecycle operation against the wrong state,
	// e.g. undo after finalization. No state change occurred.
	CodeInvalidTransition Code = "invalid_transition"
	CodeBadRequest        Code = "bad_request"
	CodeInternal          Code = "internal"
)

// Error is the concrete coded error. Callers usually interact through New,
// Wrap, and HasCode rather than the struct.
type Error struct {
	Code    Code
	Message string
	Op      string
	err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.err)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is checks against sentinels.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// WithOp tags the error with the public operation that produced it.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is lets errors.Is match two coded errors by code.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// ToHTTPStatus maps a code to the response status the transport layer writes.
func ToHTTPStatus(err error) int {
	var de *Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeInvalidTransition:
		return http.StatusConflict
	case CodePartialConsistency, CodeAdapter:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
