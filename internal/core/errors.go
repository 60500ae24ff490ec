package core

import "fmt"

type ErrorCode string

const (
	ErrBadRequest         ErrorCode = "IRP_BAD_REQUEST"
	ErrUnauthorized       ErrorCode = "IRP_UNAUTHORIZED"
	ErrForbidden          ErrorCode = "IRP_FORBIDDEN"
	ErrNotFound           ErrorCode = "IRP_NOT_FOUND"
	ErrConflictState      ErrorCode = "IRP_CONFLICT_STATE"
	ErrConflictIdempotent ErrorCode = "IRP_CONFLICT_IDEMPOTENT_MISMATCH"
	ErrConflictExists     ErrorCode = "IRP_CONFLICT_EXISTS"
	ErrInternal           ErrorCode = "IRP_INTERNAL"
)

// HTTPStatus returns the HTTP status code for this error code.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrBadRequest:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrConflictState, ErrConflictIdempotent, ErrConflictExists:
		return 409
	default:
		return 500
	}
}

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}
