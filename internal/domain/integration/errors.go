package integration

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sync errors
var (
	// ErrTransient indicates a timeout, 5xx or connection failure; retried next cycle
	ErrTransient = errors.New("integration: transient failure")
	// ErrAuthFailed indicates the refresh token was rejected; needs a human to reconnect
	ErrAuthFailed = errors.New("integration: authorization failed")
	// ErrMalformedPayload indicates an order page body could not be decoded
	ErrMalformedPayload = errors.New("integration: malformed response payload")
	// ErrMalformedOrder indicates a single order element could not be decoded
	ErrMalformedOrder = errors.New("integration: malformed order")
	// ErrOrderAlreadyProcessed indicates the processed flag was flipped concurrently
	ErrOrderAlreadyProcessed = errors.New("integration: order already processed")
	// ErrAccountNotFound indicates the account does not exist
	ErrAccountNotFound = errors.New("integration: account not found")
	// ErrOrderNotFound indicates no local order exists for the idempotency key
	ErrOrderNotFound = errors.New("integration: order not found")
	// ErrMissingCredentials indicates the account cannot refresh its token
	ErrMissingCredentials = errors.New("integration: account has no refresh credentials")
)

// AuthError is returned when the external system rejects the account's credentials
type AuthError struct {
	AccountID  uuid.UUID
	StatusCode int
	Reason     string
	Err        error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%v: account %s", ErrAuthFailed, e.AccountID)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

// Unwrap exposes ErrAuthFailed and the underlying cause to errors.Is
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthFailed}
	}
	return []error{ErrAuthFailed, e.Err}
}

// NewAuthError creates an AuthError
func NewAuthError(accountID uuid.UUID, statusCode int, reason string, cause error) *AuthError {
	return &AuthError{AccountID: accountID, StatusCode: statusCode, Reason: reason, Err: cause}
}

// TransientError is returned for failures that are expected to clear on their own
type TransientError struct {
	AccountID uuid.UUID
	Op        string
	Err       error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s for account %s", ErrTransient, e.Op, e.AccountID)
	}
	return fmt.Sprintf("%v: %s for account %s: %v", ErrTransient, e.Op, e.AccountID, e.Err)
}

// Unwrap exposes ErrTransient and the underlying cause to errors.Is
func (e *TransientError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransient}
	}
	return []error{ErrTransient, e.Err}
}

// NewTransientError creates a TransientError
func NewTransientError(accountID uuid.UUID, op string, cause error) *TransientError {
	return &TransientError{AccountID: accountID, Op: op, Err: cause}
}

// IsAuthError reports whether err is an authorization failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsTransient reports whether err is a transient failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
