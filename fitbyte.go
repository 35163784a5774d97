package fitbyte

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesprial/go-fitbyte/internal"
	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/keys"
	"github.com/jamesprial/go-fitbyte/pkg/types"
	"github.com/jamesprial/go-fitbyte/pkg/value"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// RateLimitConfig controls client-side request throttling.
type RateLimitConfig = internal.RateLimitConfig

// RequestOptions adjusts a single Get, Post or Delete call.
type RequestOptions struct {
	// SnakeCase and SymbolizeKeys override the client defaults for this
	// call's response when non-nil.
	SnakeCase     *bool
	SymbolizeKeys *bool

	// Query is appended to the request URL.
	Query url.Values

	// JSONBody sends a Post body as application/json instead of the
	// form encoding Fitbit endpoints accept by default.
	JSONBody bool
}

// Client is a Fitbit API client. It owns one credential, refreshes it when
// it expires, and normalizes the keys of request and response bodies.
// A Client is safe for concurrent use.
type Client struct {
	auth      *internal.Authenticator
	client    *internal.Client
	validator *internal.Validator
	settings  settings
	logger    *slog.Logger
}

// NewClient creates a client from config using DefaultDefaults.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	return NewClientWithDefaults(ctx, config, DefaultDefaults())
}

// NewClientWithDefaults creates a client, filling empty config fields from
// defaults.
//
// With the authorization code grant and a RefreshToken, the refresh token is
// exchanged right away; the returned error is then an *errors.AuthError or
// *errors.RequestError. With the implicit grant, AccessToken and UserID are
// stored as they are and no request is made.
//
// Returns an *errors.ConfigError if ClientID or ClientSecret is missing, if
// GrantType is not a supported value, or if the implicit grant lacks its
// token or user id.
func NewClientWithDefaults(ctx context.Context, config *Config, defaults Defaults) (*Client, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	s := config.resolve(defaults)
	if !s.grantType.Valid() {
		return nil, &pkgerrs.ConfigError{Field: "grant_type", Message: "unsupported default grant type " + string(s.grantType)}
	}
	if s.grantType == types.GrantImplicit && (config.AccessToken == "" || config.UserID == "") {
		return nil, &pkgerrs.ConfigError{Message: "implicit grant type needs access_token and user_id"}
	}

	validator := internal.NewValidator()
	if err := validator.ValidateHeaderValue("unit_system", s.unitSystem); err != nil {
		return nil, err
	}
	if err := validator.ValidateHeaderValue("locale", s.locale); err != nil {
		return nil, err
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	auth, err := internal.NewAuthenticator(internal.AuthConfig{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURI:  s.redirectURI,
		AuthorizeURL: s.authorizeURL,
		TokenURL:     s.tokenURL,
		Scope:        s.scope,
		GrantType:    s.grantType,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		auth:      auth,
		validator: validator,
		settings:  s,
		logger:    logger,
	}

	c.client, err = internal.NewClient(httpClient, s.siteURL, c.RequestHeaders(), config.RateLimit, logger)
	if err != nil {
		return nil, err
	}

	switch s.grantType {
	case types.GrantAuthCode:
		if config.RefreshToken != "" {
			if _, err := c.RestoreToken(ctx, config.RefreshToken); err != nil {
				return nil, err
			}
		}
	case types.GrantImplicit:
		c.InitToken(config.AccessToken, config.UserID)
	}

	return c, nil
}

// GrantType returns the grant flow the client was configured with.
func (c *Client) GrantType() types.GrantType {
	return c.settings.grantType
}

// AuthPageLink returns the Fitbit page where the user authorizes the
// application: a code-flow URL for the authorization code grant and a
// token-flow URL for the implicit grant.
func (c *Client) AuthPageLink() string {
	return c.auth.AuthCodeURL("")
}

// AuthPageLinkWithState is AuthPageLink with an OAuth2 state parameter the
// redirect handler can check.
func (c *Client) AuthPageLinkWithState(state string) string {
	return c.auth.AuthCodeURL(state)
}

// GetToken exchanges the authorization code delivered to the redirect URI
// for a credential, replacing the current one.
func (c *Client) GetToken(ctx context.Context, authCode string) (types.Credential, error) {
	return c.auth.Exchange(ctx, authCode)
}

// RestoreToken exchanges a saved refresh token for a fresh credential,
// replacing the current one.
func (c *Client) RestoreToken(ctx context.Context, refreshToken string) (types.Credential, error) {
	return c.auth.Restore(ctx, refreshToken)
}

// InitToken stores an implicit-flow access token for userID. No request is
// made and the credential never expires locally.
func (c *Client) InitToken(accessToken, userID string) types.Credential {
	return c.auth.Init(accessToken, userID)
}

// Token returns the current credential, refreshing it first if it has
// expired. Every request obtains its credential here.
func (c *Client) Token(ctx context.Context) (types.Credential, error) {
	return c.auth.ValidCredential(ctx)
}

// RefreshToken refreshes the credential regardless of its expiry.
func (c *Client) RefreshToken(ctx context.Context) (types.Credential, error) {
	return c.auth.Refresh(ctx)
}

// Credential returns the stored credential without refreshing it. The
// refresh token and user id it carries are what a caller persists.
func (c *Client) Credential() (types.Credential, bool) {
	return c.auth.Credential()
}

// UserID returns the Fitbit user id of the credential.
func (c *Client) UserID() string {
	return c.auth.UserID()
}

// AuthHeader returns the Basic authorization header sent to the token
// endpoint.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", c.auth.BasicAuthHeader())
	return h
}

// RequestHeaders returns the headers sent with every resource request.
func (c *Client) RequestHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "fitbyte-"+Version+" go ("+RepoURL+")")
	h.Set("Accept-Language", c.settings.unitSystem)
	h.Set("Accept-Locale", c.settings.locale)
	return h
}

// Get fetches path, relative to the API version, and returns the response
// body with its keys normalized per opts and the client defaults.
//
// Once Fitbit reports the hourly quota as spent, Get, Post and Delete wait
// until the Fitbit-Rate-Limit-Reset window ends before sending, which can be
// most of an hour. Bound the wait with a deadline or cancellation on ctx;
// the call then returns a *errors.RequestError wrapping ctx.Err().
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (value.Value, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts)
}

// Post sends body to path. Body keys are converted to camelCase before
// sending. A null body sends no payload. It waits out a spent quota like Get.
func (c *Client) Post(ctx context.Context, path string, body value.Value, opts *RequestOptions) (value.Value, error) {
	return c.do(ctx, http.MethodPost, path, &body, opts)
}

// Delete deletes the resource at path. It waits out a spent quota like Get.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (value.Value, error) {
	return c.do(ctx, http.MethodDelete, path, nil, opts)
}

// do issues one resource call. A 204 response, or an empty body, yields a
// null Value. A non-2xx response yields the parsed body together with an
// *errors.APIError; it is not retried.
func (c *Client) do(ctx context.Context, method, path string, body *value.Value, opts *RequestOptions) (value.Value, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	if err := c.validator.ValidatePath(path); err != nil {
		return value.Value{}, err
	}

	tok, err := c.auth.ValidToken(ctx)
	if err != nil {
		return value.Value{}, err
	}

	reqBody, contentType, err := encodeBody(body, opts.JSONBody)
	if err != nil {
		return value.Value{}, &pkgerrs.RequestError{Operation: strings.ToLower(method), URL: path, Message: "failed to encode request body", Err: err}
	}

	apiPath := c.settings.apiVersion + "/" + strings.TrimPrefix(path, "/")
	req, err := c.client.NewRequest(ctx, method, apiPath, tok.AccessToken, reqBody)
	if err != nil {
		return value.Value{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(opts.Query) > 0 {
		q := req.URL.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	c.logger.Debug("fitbit API request", "method", method, "path", apiPath)

	resp, err := c.client.Do(req)
	if err != nil {
		return value.Value{}, err
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	var result value.Value
	if resp.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(resp.Body)) > 0 {
		parsed, parseErr := value.Parse(resp.Body)
		switch {
		case parseErr == nil:
			result = parsed
		case success:
			return value.Value{}, &pkgerrs.ParseError{Operation: strings.ToLower(method) + " " + apiPath, Err: parseErr}
		}
	}

	var apiErr error
	if !success {
		apiErr = &pkgerrs.APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       apiPath,
			Message:    errorMessage(result),
			Body:       string(resp.Body),
		}
	}

	return keys.Inbound(result, c.normalization(opts)), apiErr
}

func (c *Client) normalization(opts *RequestOptions) keys.Options {
	merged := keys.Options{
		SnakeCase:     c.settings.snakeCase,
		SymbolizeKeys: c.settings.symbolizeKeys,
	}
	if opts.SnakeCase != nil {
		merged.SnakeCase = *opts.SnakeCase
	}
	if opts.SymbolizeKeys != nil {
		merged.SymbolizeKeys = *opts.SymbolizeKeys
	}
	return merged
}

func encodeBody(body *value.Value, asJSON bool) (io.Reader, string, error) {
	if body == nil || body.IsNull() {
		return nil, "", nil
	}

	payload := keys.Outbound(*body)
	if asJSON {
		data, err := payload.MarshalJSON()
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}

	form, err := value.EncodeForm(payload)
	if err != nil {
		return nil, "", err
	}
	return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
}

// errorMessage pulls the first message out of a Fitbit error envelope:
// {"errors":[{"errorType":"...","message":"..."}]}.
func errorMessage(body value.Value) string {
	list, ok := body.Lookup("errors")
	if !ok || list.Len() == 0 {
		return ""
	}
	first := list.Elems()[0]
	if msg, ok := first.Lookup("message"); ok {
		if s, ok := msg.Str(); ok {
			return s
		}
	}
	if errType, ok := first.Lookup("errorType"); ok {
		if s, ok := errType.Str(); ok {
			return s
		}
	}
	return ""
}
