package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies restore failures. Every code is request-rejecting:
// the cluster state is left untouched when one of these is returned.
type ErrorCode int

const (
	// ErrCodeOK is the zero value and never carried by a real error
	ErrCodeOK ErrorCode = 0

	// Resolution-time errors
	ErrCodeSnapshotNotFound     ErrorCode = 1000
	ErrCodeSnapshotMismatch     ErrorCode = 1001
	ErrCodeRepositoryNotFound   ErrorCode = 1002
	ErrCodeInvalidRequest       ErrorCode = 1003
	ErrCodeRenameCollision      ErrorCode = 1004
	ErrCodeFeatureStateMissing  ErrorCode = 1005
	ErrCodeFeatureNotInstalled  ErrorCode = 1006
	ErrCodeFeatureStateConflict ErrorCode = 1007

	// Plan-build errors
	ErrCodeConcurrentSnapshotDeletion ErrorCode = 2000
	ErrCodeIncompatibleVersion        ErrorCode = 2001
	ErrCodeIncompleteSnapshotData     ErrorCode = 2002
	ErrCodeIndexAlreadyOpen           ErrorCode = 2003
	ErrCodeShardCountMismatch         ErrorCode = 2004
	ErrCodeAliasNameConflict          ErrorCode = 2005
	ErrCodeInvalidIndexName           ErrorCode = 2006
	ErrCodeShardLimitExceeded         ErrorCode = 2007

	// Settings reconciliation errors
	ErrCodeImmutableSetting   ErrorCode = 3000
	ErrCodeUnremovableSetting ErrorCode = 3001

	// Lookup errors
	ErrCodeRestoreNotFound ErrorCode = 4000

	// Internal errors
	ErrCodeInternal ErrorCode = 5000
)

// RestoreError is a typed restore failure carrying the snapshot context it
// relates to.
type RestoreError struct {
	Code       ErrorCode
	Repository string
	Snapshot   string
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *RestoreError) Error() string {
	prefix := ""
	if e.Repository != "" || e.Snapshot != "" {
		prefix = fmt.Sprintf("[%s:%s] ", e.Repository, e.Snapshot)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %v", prefix, e.Message, e.Cause)
	}
	return prefix + e.Message
}

// Unwrap returns the underlying error
func (e *RestoreError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status for the admin API
func (e *RestoreError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeSnapshotNotFound, ErrCodeRepositoryNotFound, ErrCodeRestoreNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidRequest, ErrCodeRenameCollision, ErrCodeInvalidIndexName,
		ErrCodeImmutableSetting, ErrCodeUnremovableSetting, ErrCodeFeatureStateConflict:
		return http.StatusBadRequest
	case ErrCodeSnapshotMismatch, ErrCodeConcurrentSnapshotDeletion, ErrCodeIndexAlreadyOpen,
		ErrCodeShardCountMismatch, ErrCodeAliasNameConflict, ErrCodeFeatureStateMissing,
		ErrCodeFeatureNotInstalled, ErrCodeIncompleteSnapshotData, ErrCodeIncompatibleVersion:
		return http.StatusConflict
	case ErrCodeShardLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New creates a RestoreError with the given code and formatted message
func New(code ErrorCode, repository, snapshot, format string, args ...interface{}) *RestoreError {
	return &RestoreError{
		Code:       code,
		Repository: repository,
		Snapshot:   snapshot,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Wrap creates a RestoreError wrapping a cause
func Wrap(code ErrorCode, repository, snapshot string, cause error, format string, args ...interface{}) *RestoreError {
	err := New(code, repository, snapshot, format, args...)
	err.Cause = cause
	return err
}

// CodeOf extracts the error code from err, or ErrCodeInternal for untyped
// errors; ErrCodeOK for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var re *RestoreError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given restore error code
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// As extracts a *RestoreError from err's chain
func As(err error, target **RestoreError) bool {
	return errors.As(err, target)
}
