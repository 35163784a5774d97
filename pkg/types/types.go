// Package types holds the small data types shared between the client and its
// internals.
package types

import (
	"fmt"
	"time"
)

// GrantType selects the OAuth2 flow used to obtain access tokens.
type GrantType string

const (
	// GrantAuthCode is the authorization code flow: the server exchanges a
	// code for an access and refresh token pair.
	GrantAuthCode GrantType = "auth_code"
	// GrantImplicit is the implicit flow: the access token is delivered to
	// the client directly and is never refreshed.
	GrantImplicit GrantType = "implicit"
)

// Valid reports whether g is one of the supported grant types.
func (g GrantType) Valid() bool {
	return g == GrantAuthCode || g == GrantImplicit
}

// ParseGrantType converts s into a GrantType.
func ParseGrantType(s string) (GrantType, error) {
	g := GrantType(s)
	if !g.Valid() {
		return "", fmt.Errorf("unsupported grant_type %q: please use %q or %q", s, GrantAuthCode, GrantImplicit)
	}
	return g, nil
}

// Credential is a snapshot of the session's access credential. Callers
// persist RefreshToken and UserID themselves and pass them back in on the
// next construction.
type Credential struct {
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	UserID       string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Expired reports whether the credential carries an expiry that has passed.
// A zero expiry never expires.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}
