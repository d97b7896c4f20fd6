package engine

import (
	"errors"
	"fmt"

	"gridbase-backend/internal/formula"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
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

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownTableError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_TABLE",
		Status:  404,
		Message: fmt.Sprintf("Unknown table: %s", name),
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

// formulaAppError maps hard formula pipeline errors to API errors. Soft
// type failures never reach this path; they are stored on the field.
func formulaAppError(err error) *AppError {
	var syntaxErr *formula.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &AppError{Code: "FORMULA_SYNTAX", Status: 400, Message: syntaxErr.Error()}
	}
	var sizeErr *formula.MaximumFormulaSizeError
	if errors.As(err, &sizeErr) {
		return &AppError{Code: "FORMULA_TOO_LONG", Status: 400, Message: sizeErr.Error()}
	}
	var selfErr *formula.SelfReferenceError
	if errors.As(err, &selfErr) {
		return &AppError{Code: "FORMULA_SELF_REFERENCE", Status: 400, Message: selfErr.Error()}
	}
	var circErr *formula.CircularReferenceError
	if errors.As(err, &circErr) {
		return &AppError{Code: "FORMULA_CIRCULAR_REFERENCE", Status: 400, Message: circErr.Error()}
	}
	return nil
}
