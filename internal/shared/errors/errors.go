// Package errors implements the error taxonomy every layer of the core
// surfaces: a fixed set of kinds (never bespoke per-command types), each
// carrying a stable short code and a display-safe message, with
// errors.As/errors.Is support via Unwrap.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is one of the eight error kinds of the taxonomy. Kind is what
// callers branch on; Code is what gets logged/displayed.
type Kind string

const (
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindNotFound           Kind = "NOT_FOUND"
	KindAlreadyExists      Kind = "ALREADY_EXISTS"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindConcurrencyConflict Kind = "CONCURRENCY_CONFLICT"
	KindStorageError       Kind = "STORAGE_ERROR"
	KindInternal           Kind = "INTERNAL"
)

// AppError is the single error type used throughout the core. Err carries
// the wrapped cause (for logs); Message is safe to show a caller.
type AppError struct {
	Err     error
	Message string
	Kind    Kind
	Code    string
	Details map[string]string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &AppError{Kind: KindNotFound}) match any
// AppError of the same kind by comparing kinds directly, in addition to
// the usual errors.As(err, &AppError{}) path.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind Kind, code, message string, err error, details map[string]string) *AppError {
	return &AppError{Err: err, Message: message, Kind: kind, Code: code, Details: details}
}

// InvalidArgument — input failed syntactic validation.
func InvalidArgument(code, message string, details map[string]string) *AppError {
	return newErr(KindInvalidArgument, code, message, nil, details)
}

// NotFound — target entity does not exist (state unspecified or removed).
func NotFound(code, resource, id string) *AppError {
	return newErr(KindNotFound, code, fmt.Sprintf("%s not found", resource), nil,
		map[string]string{"resource": resource, "id": id})
}

// AlreadyExists — uniqueness violation at the domain level.
func AlreadyExists(code, resource, id string) *AppError {
	return newErr(KindAlreadyExists, code, fmt.Sprintf("%s already exists", resource), nil,
		map[string]string{"resource": resource, "id": id})
}

// PreconditionFailed — state-machine violation.
func PreconditionFailed(code, message string) *AppError {
	return newErr(KindPreconditionFailed, code, message, nil, nil)
}

// PermissionDenied — authorization check returned deny.
func PermissionDenied(code, message string) *AppError {
	return newErr(KindPermissionDenied, code, message, nil, nil)
}

// ConcurrencyConflict — optimistic concurrency failure, retryable by caller.
type ConcurrencyConflict struct {
	*AppError
	ExpectedVersion int
	ActualVersion   int
}

func NewConcurrencyConflict(code string, expected, actual int) *ConcurrencyConflict {
	return &ConcurrencyConflict{
		AppError:        newErr(KindConcurrencyConflict, code, "aggregate version mismatch", nil, nil),
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// StorageError — IO or integrity failure from the event store or projections.
func StorageError(code, op string, err error) *AppError {
	return newErr(KindStorageError, code, fmt.Sprintf("storage error during %s", op), err, nil)
}

// Internal — unexpected programming error.
func Internal(code string, err error) *AppError {
	return newErr(KindInternal, code, "internal error", err, nil)
}

// Wrap attaches additional context to an existing AppError, or wraps a
// foreign error as Internal if it isn't one yet.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return newErr(appErr.Kind, appErr.Code, fmt.Sprintf("%s: %s", message, appErr.Message), appErr.Err, appErr.Details)
	}
	return newErr(KindInternal, "INTERNAL-0001", message, err, nil)
}

// KindOf extracts the Kind from err (an *AppError or a
// *ConcurrencyConflict), or KindInternal if err is neither.
func KindOf(err error) Kind {
	var conflict *ConcurrencyConflict
	if stderrors.As(err, &conflict) && conflict.AppError != nil {
		return conflict.Kind
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
