package domain

import (
	"errors"
	"fmt"
)

// ErrorType is the flat classification taxonomy for dispatch failures.
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION"
	ErrorTypeAuthorization  ErrorType = "AUTHORIZATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeConflict       ErrorType = "CONFLICT"
	ErrorTypeRateLimit      ErrorType = "RATE_LIMIT"
	ErrorTypeNetwork        ErrorType = "NETWORK"
	ErrorTypeBackstageAPI   ErrorType = "BACKSTAGE_API"
	ErrorTypeInternal       ErrorType = "INTERNAL"
	ErrorTypeUnknown        ErrorType = "UNKNOWN"
)

// Error is a taxonomy-tagged error. Errors produced inside this process carry
// an explicit Type so classification never has to guess; the substring
// heuristics only apply to foreign errors.
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Type)
		}
		return fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Type)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Type, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// E builds a tagged error.
func E(kind ErrorType, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Type:    kind,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// WrapError tags a foreign error, preserving an existing tag if present.
func WrapError(kind ErrorType, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Type:    existing.Type,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Details: existing.Details,
		}
	}
	return E(kind, op, "", err)
}

// TypeFrom extracts the explicit tag from an error chain.
func TypeFrom(err error) (ErrorType, bool) {
	if err == nil {
		return "", false
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Type != "" {
		return tagged.Type, true
	}
	return "", false
}

// Operational reports whether the error type names an expected, recoverable
// category rather than a configuration or internal defect.
func (t ErrorType) Operational() bool {
	switch t {
	case ErrorTypeValidation, ErrorTypeAuthentication, ErrorTypeAuthorization,
		ErrorTypeNotFound, ErrorTypeConflict, ErrorTypeRateLimit,
		ErrorTypeNetwork, ErrorTypeBackstageAPI:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error type to its HTTP-like status string.
func (t ErrorType) HTTPStatus() string {
	switch t {
	case ErrorTypeValidation:
		return "400"
	case ErrorTypeAuthentication:
		return "401"
	case ErrorTypeAuthorization:
		return "403"
	case ErrorTypeNotFound:
		return "404"
	case ErrorTypeConflict:
		return "409"
	case ErrorTypeRateLimit:
		return "429"
	case ErrorTypeNetwork:
		return "502"
	case ErrorTypeBackstageAPI:
		return "502"
	default:
		return "500"
	}
}

// Title returns the human-readable heading for an error type.
func (t ErrorType) Title() string {
	switch t {
	case ErrorTypeValidation:
		return "Validation Error"
	case ErrorTypeAuthentication:
		return "Authentication Error"
	case ErrorTypeAuthorization:
		return "Authorization Error"
	case ErrorTypeNotFound:
		return "Not Found"
	case ErrorTypeConflict:
		return "Conflict"
	case ErrorTypeRateLimit:
		return "Rate Limited"
	case ErrorTypeNetwork:
		return "Network Error"
	case ErrorTypeBackstageAPI:
		return "Backstage API Error"
	case ErrorTypeInternal:
		return "Internal Error"
	default:
		return "Unknown Error"
	}
}
