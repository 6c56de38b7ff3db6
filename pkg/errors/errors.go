package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for each error kind. AppErrors wrap exactly one of them, so
// errors.Is works across service and repository boundaries.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrConflict      = errors.New("conflict")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrUnprocessable = errors.New("unprocessable entity")
	ErrGone          = errors.New("gone")
)

type kind struct {
	sentinel error
	code     string
	status   int
}

// Checked in order by Classify.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrUnprocessable, "UNPROCESSABLE_ENTITY", http.StatusUnprocessableEntity},
	{ErrGone, "GONE", http.StatusGone},
}

const (
	codeInternal    = "INTERNAL_ERROR"
	messageInternal = "an internal error occurred"
)

// AppError is an error with a client-facing message and HTTP mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	return Internal(sentinel)
}

// NotFound reports a missing resource by id.
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// NotFoundMessage is NotFound with a caller supplied message.
func NotFoundMessage(message string) *AppError { return newError(ErrNotFound, message) }

// AlreadyExists reports a uniqueness clash on field.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

func Conflict(message string) *AppError     { return newError(ErrConflict, message) }
func InvalidInput(message string) *AppError { return newError(ErrInvalidInput, message) }
func Unauthorized(message string) *AppError { return newError(ErrUnauthorized, message) }
func Forbidden(message string) *AppError    { return newError(ErrForbidden, message) }
func Gone(message string) *AppError         { return newError(ErrGone, message) }

// Unprocessable is for a well-formed request that breaks a business rule,
// such as asking for more stock than is available.
func Unprocessable(message string) *AppError { return newError(ErrUnprocessable, message) }

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return &AppError{Code: codeInternal, Message: messageInternal, Status: http.StatusInternalServerError, Err: err}
}

// Classify returns the HTTP status and code for err. An *AppError anywhere
// in the chain wins; otherwise a wrapped sentinel decides; anything else is
// internal.
func Classify(err error) (status int, code string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, codeInternal
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	status, _ := Classify(err)
	return status
}
