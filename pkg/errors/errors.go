// Package errors defines the error types returned by the Fitbit API wrapper.
//
// Callers match them with errors.As:
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
//		// re-authenticate
//	}
package errors

import (
	"fmt"
	"strings"
)

// ConfigError indicates an invalid client configuration. It is returned
// synchronously from client construction.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Fields lists every missing required field when more than one is absent
	Fields []string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case len(e.Fields) > 0:
		return fmt.Sprintf("config error: %s: %s", e.Message, strings.Join(e.Fields, ", "))
	case e.Field != "":
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	case e.Message != "":
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return "config error"
}

// AuthError indicates a failed exchange with the token endpoint, for example
// a revoked refresh token or an invalid authorization code.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Message contains the detailed error message
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	parts := []string{}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}
	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 0 {
		return "auth error"
	}
	return "auth error: " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted when the client is not ready,
// such as issuing a request before any credential has been obtained.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates a transport failure while talking to the API: the
// request could not be built, sent, or its response could not be read.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ParseError indicates a response body that is not valid JSON.
type ParseError struct {
	// Operation is the name of the API operation where parsing failed
	Operation string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" {
		return fmt.Sprintf("parse error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("parse error: %s", msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response from a resource endpoint. The client
// still returns the parsed body alongside it; classifying the status is left
// to the caller.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Method and Path identify the failed call
	Method string
	Path   string
	// Message is the first error message found in the Fitbit error envelope
	Message string
	// Body is the raw response body
	Body string
}

func (e *APIError) Error() string {
	target := strings.TrimSpace(e.Method + " " + e.Path)
	if e.Message != "" {
		return fmt.Sprintf("fitbit API error (status %d, %s): %s", e.StatusCode, target, e.Message)
	}
	return fmt.Sprintf("fitbit API request %s failed with status %d", target, e.StatusCode)
}
