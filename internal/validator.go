package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
)

const (
	// Resource path constraints
	maxPathLength = 2048

	// Log and device ID constraints
	maxIDLength = 64

	// Header value constraints
	maxHeaderValueLength = 256
)

// timeSeriesPeriods are the periods Fitbit accepts for time series ending at
// a date.
var timeSeriesPeriods = map[string]bool{
	"1d": true, "7d": true, "30d": true,
	"1w": true, "1m": true, "3m": true, "6m": true, "1y": true,
}

// Validator provides validation operations for Fitbit API parameters.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePath checks that a resource path is relative to the API version
// and stays inside it.
func (v *Validator) ValidatePath(path string) error {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return &pkgerrs.ConfigError{Field: "path", Message: "resource path cannot be empty"}
	}
	if len(trimmed) > maxPathLength {
		return &pkgerrs.ConfigError{Field: "path", Message: fmt.Sprintf("resource path cannot exceed %d characters", maxPathLength)}
	}
	if strings.Contains(trimmed, "://") || strings.HasPrefix(trimmed, "/") {
		return &pkgerrs.ConfigError{Field: "path", Message: "resource path must be relative to the API version"}
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return &pkgerrs.ConfigError{Field: "path", Message: "resource path cannot contain newline characters"}
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return &pkgerrs.ConfigError{Field: "path", Message: "resource path cannot contain '..' segments"}
		}
	}
	return nil
}

// ValidatePeriod checks a time series period such as 7d or 1m.
func (v *Validator) ValidatePeriod(period string) error {
	if !timeSeriesPeriods[period] {
		return &pkgerrs.ConfigError{Field: "period", Message: fmt.Sprintf("unsupported period %q", period)}
	}
	return nil
}

// ValidateID checks a log or device ID used as a path segment.
func (v *Validator) ValidateID(field, id string) error {
	if id == "" {
		return &pkgerrs.ConfigError{Field: field, Message: "cannot be empty"}
	}
	if len(id) > maxIDLength {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("too long (max %d characters)", maxIDLength)}
	}
	for _, char := range id {
		if !((char >= '0' && char <= '9') ||
			(char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z')) {
			return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("contains invalid character: %c (only alphanumeric allowed)", char)}
		}
	}
	return nil
}

// ValidateHeaderValue checks a configured value that is sent as a request
// header, such as the unit system or locale, to prevent header injection.
func (v *Validator) ValidateHeaderValue(field, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return &pkgerrs.ConfigError{Field: field, Message: "cannot contain newline characters"}
	}
	if len(value) > maxHeaderValueLength {
		return &pkgerrs.ConfigError{Field: field, Message: fmt.Sprintf("too long (max %d characters)", maxHeaderValueLength)}
	}
	return nil
}
