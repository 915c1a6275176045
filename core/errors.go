package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed input or a request that is invalid given the current state.
// It is the BadRequest class of errors.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewBadRequestError is a ValidationError without field details.
func NewBadRequestError(msg string) error {
	return &ValidationError{Err: errors.New(msg)}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	Msg    string
}

func NewNotFoundError(entity, msg string) error {
	return &NotFoundError{Entity: entity, Msg: msg}
}

func (err NotFoundError) Error() string {
	if err.Msg != "" {
		return err.Msg
	}
	return err.Entity + " not found"
}

// ForbiddenError reports that the actor lacks the authority for the operation.
type ForbiddenError struct {
	Msg string
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{Msg: msg}
}

func (err ForbiddenError) Error() string {
	return err.Msg
}

// ConflictError reports that the operation clashes with the current state of a resource.
type ConflictError struct {
	Msg string
}

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func (err ConflictError) Error() string {
	return err.Msg
}

func IsBadRequest(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error that makes the API server shut down gracefully.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
