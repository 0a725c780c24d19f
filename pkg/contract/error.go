package contract

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode classifies failures crossing component boundaries.
type ErrorCode string

const (
	ErrorCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrorCodeUnsupportedSourceType ErrorCode = "UNSUPPORTED_SOURCE_TYPE"
	ErrorCodeNotImplemented        ErrorCode = "NOT_IMPLEMENTED"
	ErrorCodeConnectivityFailure   ErrorCode = "CONNECTIVITY_FAILURE"
	ErrorCodeExecutionFailure      ErrorCode = "EXECUTION_FAILURE"
	ErrorCodeInvalidParameterValue ErrorCode = "INVALID_PARAMETER_VALUE"
	ErrorCodeInternalError         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code    ErrorCode `json:"error_code"`
	Message string    `json:"message"`
	inner   error
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func NewErrorWith(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, inner: err}
}

func (e *Error) Error() string {
	if e.inner != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.inner)
	}

	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.inner
}

func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrorCodeNotFound:
		return fiber.StatusNotFound
	case ErrorCodeInvalidParameterValue, ErrorCodeUnsupportedSourceType:
		return fiber.StatusBadRequest
	case ErrorCodeNotImplemented:
		return fiber.StatusNotImplemented
	case ErrorCodeConnectivityFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
