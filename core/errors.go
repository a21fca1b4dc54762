package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAuthFailed is returned for any credential mismatch, including unknown emails.
	ErrAuthFailed = errors.New("invalid email or password")

	// ErrUnauthenticated is returned by operations that require an active session.
	ErrUnauthenticated = errors.New("not authenticated")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// StorageError reports a failed read or write on a persisted collection.
type StorageError struct {
	Op         string // get | set | delete | encode | decode
	Collection string
	Err        error
}

func NewStorageError(op, collection string, err error) error {
	return &StorageError{Op: op, Collection: collection, Err: err}
}

func (err *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", err.Op, err.Collection, err.Err)
}

func (err *StorageError) Unwrap() error { return err.Err }

// NotFoundError is returned when a lookup by identifier has no match.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err *NotFoundError) Error() string {
	if err.ID == "" {
		return err.Entity + " not found"
	}
	return fmt.Sprintf("%s %q not found", err.Entity, err.ID)
}

// IncompleteSubmissionError is returned when a viva is submitted with unanswered questions.
type IncompleteSubmissionError struct {
	Answered int
	Total    int
}

func (err *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("all questions must be answered (%d of %d answered)", err.Answered, err.Total)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

type shutdown struct {
	message string
}

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
