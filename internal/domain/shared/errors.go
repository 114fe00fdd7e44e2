package shared

import "fmt"

// DomainError is a rule violation identified by a stable code.
// Errors compare equal under errors.Is when their codes match.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// NewDomainError creates a domain error with the given code
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// ErrNotFound is returned by repositories when a lookup matches nothing
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")

// NotFound returns an ErrNotFound naming what was looked up
func NotFound(what string, key any) *DomainError {
	return NewDomainError(ErrNotFound.Code, fmt.Sprintf("%s %v not found", what, key))
}
