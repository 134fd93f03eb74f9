package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrForbidden is returned when the caller lacks the manage-users
	// capability. It carries no detail about the request.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when the target user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when a disabled account tries to log in.
	ErrAccountDisabled = errors.New("account is disabled")
)

// ValidationError holds field-keyed messages for rejected input.
type ValidationError struct {
	Fields map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) has(field string) bool {
	return len(e.Fields[field]) > 0
}

// orNil lets callers return a *ValidationError as a plain error without the
// typed-nil trap.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
