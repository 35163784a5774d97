package internal

import (
	"errors"
	"strings"
	"testing"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
)

func TestValidator_ValidatePath(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		// Valid cases
		{name: "profile", input: "user/-/profile.json", wantError: false},
		{name: "leading slash trimmed", input: "/user/-/sleep/goal.json", wantError: false},
		{name: "explicit user", input: "user/26FWFL/activities/date/2024-01-15.json", wantError: false},

		// Invalid cases
		{name: "empty string", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "only slash", input: "/", wantError: true, errorMsg: "cannot be empty"},
		{name: "absolute URL", input: "https://evil.example.com/x", wantError: true, errorMsg: "relative"},
		{name: "double slash", input: "//evil.example.com/x", wantError: true, errorMsg: "relative"},
		{name: "path traversal", input: "user/../../oauth2/token", wantError: true, errorMsg: "'..'"},
		{name: "contains newline", input: "user/-/profile.json\r\nX-Injected: 1", wantError: true, errorMsg: "newline"},
		{name: "too long", input: strings.Repeat("a", maxPathLength+1), wantError: true, errorMsg: "cannot exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePath(tt.input)
			if !tt.wantError {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
			var cfgErr *pkgerrs.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != "path" {
				t.Errorf("expected ConfigError for path, got %T (%v)", err, err)
			}
		})
	}
}

func TestValidator_ValidatePeriod(t *testing.T) {
	v := NewValidator()

	for _, period := range []string{"1d", "7d", "30d", "1w", "1m", "3m", "6m", "1y"} {
		if err := v.ValidatePeriod(period); err != nil {
			t.Errorf("expected %q to be valid, got %v", period, err)
		}
	}
	for _, period := range []string{"", "2d", "7D", "1d/../x"} {
		if err := v.ValidatePeriod(period); err == nil {
			t.Errorf("expected %q to be rejected", period)
		}
	}
}

func TestValidator_ValidateID(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name      string
		input     string
		wantError bool
		errorMsg  string
	}{
		{name: "numeric log id", input: "26431237564", wantError: false},
		{name: "alphanumeric", input: "abc123XYZ", wantError: false},
		{name: "empty", input: "", wantError: true, errorMsg: "cannot be empty"},
		{name: "too long", input: strings.Repeat("1", maxIDLength+1), wantError: true, errorMsg: "too long"},
		{name: "slash", input: "12/34", wantError: true, errorMsg: "invalid character"},
		{name: "dot", input: "12.json", wantError: true, errorMsg: "invalid character"},
		{name: "space", input: "12 34", wantError: true, errorMsg: "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateID("log_id", tt.input)
			if !tt.wantError {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
			if !strings.Contains(err.Error(), "log_id") {
				t.Errorf("expected error to name the field, got %q", err.Error())
			}
		})
	}
}

func TestValidator_ValidateHeaderValue(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateHeaderValue("locale", "en_US"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := v.ValidateHeaderValue("locale", "en_US\r\nX-Injected: 1"); err == nil {
		t.Error("expected newline to be rejected")
	}
	if err := v.ValidateHeaderValue("unit_system", strings.Repeat("a", maxHeaderValueLength+1)); err == nil {
		t.Error("expected long value to be rejected")
	}
}
