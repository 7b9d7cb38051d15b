package engine

import "fmt"

// AppError is the machine-readable error carried through every handler.
// Status selects the HTTP code; it is not serialized.
type AppError struct {
	Code    string   `json:"code"`
	Status  int      `json:"-"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"` // per-field validation messages
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// UnauthorizedError means no principal was presented where one is required.
func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

// ForbiddenError means a principal was presented but is not allowed.
func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func ValidationError(errs []string) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  400,
		Message: "Validation failed",
		Errors:  errs,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}
