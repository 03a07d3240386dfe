package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrForbidden           = 403
	ErrNotFound            = 404
	ErrConflict            = 409
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Engine error codes (1000+)
	ErrInvalidWeights        = 1001
	ErrMalformedAddress      = 1002
	ErrExternalRejection     = 1003
	ErrTransport             = 1004
	ErrUserCancelled         = 1005
	ErrNetworkMismatch       = 1006
	ErrSpinInFlight          = 1007
	ErrParticipantDrawn      = 1008
	ErrAllowanceInsufficient = 1009
	ErrInsufficientBalance   = 1010
	ErrSettlementFailed      = 1011
	ErrBusy                  = 1012
	ErrNothingToSettle       = 1013
	ErrEmptyQueue            = 1014
	ErrKafkaError            = 1015
	ErrRedisError            = 1016
	ErrConfigError           = 1017
	ErrTxUnconfirmed         = 1018
)

// ErrorKind groups codes the way the operator page surfaces them.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindRejection  ErrorKind = "rejection"
	KindTransport  ErrorKind = "transport"
	KindCancelled  ErrorKind = "cancelled"
	KindNetwork    ErrorKind = "network"
	KindConflict   ErrorKind = "conflict"
	KindPending    ErrorKind = "pending"
	KindInternal   ErrorKind = "internal"
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithDebug wraps an existing error into an AppError with a debug message
func WrapWithDebug(err error, code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Err:          err,
	}
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
		"kind":    kindFromCode(e.Code),
	}

	// Include debug message in development environment
	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode extracts error code from an error, looking through wrapped errors.
func GetCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code int) bool {
	return stderrors.Is(err, &AppError{Code: code})
}

// Message returns the user-facing message of the outermost AppError in err's
// chain, or err.Error() when there is none.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Kind classifies err for display. Unknown errors are internal.
func Kind(err error) ErrorKind {
	return kindFromCode(GetCode(err))
}

func kindFromCode(code int) ErrorKind {
	switch code {
	case ErrInvalidRequest, ErrInvalidWeights, ErrMalformedAddress, ErrNothingToSettle, ErrEmptyQueue:
		return KindValidation
	case ErrExternalRejection, ErrForbidden, ErrUnauthorized:
		return KindRejection
	case ErrTransport, ErrServiceUnavailable:
		return KindTransport
	case ErrUserCancelled:
		return KindCancelled
	case ErrTxUnconfirmed:
		return KindPending
	case ErrNetworkMismatch:
		return KindNetwork
	case ErrSpinInFlight, ErrParticipantDrawn, ErrBusy, ErrConflict, ErrAllowanceInsufficient, ErrInsufficientBalance:
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrInternalServerError:
		return 500
	case ErrServiceUnavailable:
		return 503
	case ErrInvalidWeights, ErrMalformedAddress, ErrNothingToSettle, ErrEmptyQueue:
		return 422
	case ErrSpinInFlight, ErrParticipantDrawn, ErrBusy, ErrAllowanceInsufficient, ErrInsufficientBalance, ErrTxUnconfirmed:
		return 409
	case ErrNetworkMismatch:
		return 412
	case ErrUserCancelled:
		return 499
	case ErrExternalRejection, ErrTransport, ErrSettlementFailed:
		return 502
	default:
		return 500
	}
}
