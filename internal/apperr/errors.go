// Package apperr defines the error taxonomy shared by the matcher, composer,
// validator and deadline scheduler.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	CodeInvalidParameter  Code = "INVALID_PARAMETER"
	CodeNotFound          Code = "NOT_FOUND"
	CodeOrderingViolation Code = "ORDERING_VIOLATION"
	CodePersistence       Code = "PERSISTENCE_ERROR"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNotFound          = errors.New("not found")
	ErrOrderingViolation = errors.New("ordering violation")
	ErrPersistence       = errors.New("persistence error")
)

// Error carries a taxonomy code plus context. errors.Is matches it against
// the sentinel for its code.
type Error struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
	Err     error    `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Code)
}

func sentinel(c Code) error {
	switch c {
	case CodeInvalidParameter:
		return ErrInvalidParameter
	case CodeNotFound:
		return ErrNotFound
	case CodeOrderingViolation:
		return ErrOrderingViolation
	case CodePersistence:
		return ErrPersistence
	}
	return nil
}

func InvalidParameter(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// OrderingViolation lists the prerequisite sections that are missing.
func OrderingViolation(section string, missing []string) *Error {
	return &Error{
		Code:    CodeOrderingViolation,
		Message: fmt.Sprintf("%s requires sections: %s", section, strings.Join(missing, ", ")),
		Missing: missing,
	}
}

func Persistence(op string, err error) *Error {
	return &Error{Code: CodePersistence, Message: op, Err: err}
}

// CodeOf returns the taxonomy code of err, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
