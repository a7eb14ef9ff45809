package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the engine.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeConnectivity      = "CONNECTIVITY_FAILED"
	CodeAuthentication    = "AUTH_FAILED"
	CodePersistence       = "PERSISTENCE_FAILED"
	CodeValidation        = "VALIDATION_FAILED"
	CodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewConfigurationError flags missing or invalid connection parameters.
// Fatal to the current tick, not to the process.
func NewConfigurationError(message string, details map[string]any) error {
	return NewDomainError(CodeConfigInvalid, message, http.StatusInternalServerError, details)
}

// NewConnectivityError wraps network, DNS and timeout failures. Transient;
// retried at the next scheduled tick.
func NewConnectivityError(message string, err error) error {
	return &DomainError{Code: CodeConnectivity, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

// NewAuthenticationError flags rejected remote credentials.
func NewAuthenticationError(message string) error {
	return NewDomainError(CodeAuthentication, message, http.StatusBadGateway, nil)
}

// NewPersistenceError wraps store write failures.
func NewPersistenceError(message string, err error) error {
	return &DomainError{Code: CodePersistence, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewRemoteUnavailable(message string, err error) error {
	return &DomainError{Code: CodeRemoteUnavailable, Message: message, HTTPStatus: http.StatusBadGateway, Err: err}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return hasCode(err, CodeConfigInvalid) }

// IsConnectivity reports whether err is a transient connectivity error.
func IsConnectivity(err error) bool { return hasCode(err, CodeConnectivity) }

// IsAuthentication reports whether err is a credential rejection.
func IsAuthentication(err error) bool { return hasCode(err, CodeAuthentication) }

// IsPersistence reports whether err is a store write failure.
func IsPersistence(err error) bool { return hasCode(err, CodePersistence) }

// IsValidation reports whether err is a malformed-record error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
