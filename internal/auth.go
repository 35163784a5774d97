package internal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/types"
)

// AuthConfig carries what the Authenticator needs to talk to the OAuth2
// endpoints.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	Scope        string
	GrantType    types.GrantType
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Authenticator owns the session credential. It obtains tokens through the
// configured grant flow and refreshes them when they expire. All token
// reads and writes go through mu.
type Authenticator struct {
	oauth      *oauth2.Config
	grantType  types.GrantType
	httpClient *http.Client
	logger     *slog.Logger

	clientID     string
	clientSecret string

	mu     sync.Mutex
	token  *oauth2.Token
	userID string
}

// NewAuthenticator creates an authenticator without a credential.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if _, err := url.Parse(cfg.TokenURL); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "token_url", Message: err.Error()}
	}
	if _, err := url.Parse(cfg.AuthorizeURL); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "authorize_url", Message: err.Error()}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		grantType:    cfg.GrantType,
		httpClient:   httpClient,
		logger:       logger,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}, nil
}

// AuthCodeURL returns the page the user visits to grant access. The implicit
// flow asks for a token response instead of a code.
func (a *Authenticator) AuthCodeURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if a.grantType == types.GrantImplicit {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", "token"))
	}
	return a.oauth.AuthCodeURL(state, opts...)
}

// BasicAuthHeader returns the Authorization header value sent to the token
// endpoint. The id and secret are query-escaped before encoding, as the
// oauth2 token exchange does.
func (a *Authenticator) BasicAuthHeader() string {
	creds := url.QueryEscape(a.clientID) + ":" + url.QueryEscape(a.clientSecret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// Exchange trades an authorization code for a credential and stores it.
func (a *Authenticator) Exchange(ctx context.Context, code string) (types.Credential, error) {
	a.logger.Debug("exchanging authorization code")

	tok, err := a.oauth.Exchange(a.clientContext(ctx), code)
	if err != nil {
		return types.Credential{}, a.tokenError("exchange", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.store(tok)
	return a.credentialLocked(), nil
}

// Restore performs a single refresh exchange with refreshToken and stores
// the resulting credential.
func (a *Authenticator) Restore(ctx context.Context, refreshToken string) (types.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.refreshLocked(ctx, refreshToken); err != nil {
		return types.Credential{}, err
	}
	return a.credentialLocked(), nil
}

// Init stores an implicit-flow token as is. No network call is made and the
// credential has no expiry.
func (a *Authenticator) Init(accessToken, userID string) types.Credential {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.token = &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	a.userID = userID
	return a.credentialLocked()
}

// ValidToken returns the current token, refreshing it first when it has
// expired. Concurrent callers observing the same expired token trigger a
// single refresh.
func (a *Authenticator) ValidToken(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureValidLocked(ctx); err != nil {
		return nil, err
	}
	return a.snapshotLocked(), nil
}

// ValidCredential is ValidToken returning the credential form. The check,
// any refresh and the snapshot happen under one lock.
func (a *Authenticator) ValidCredential(ctx context.Context) (types.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureValidLocked(ctx); err != nil {
		return types.Credential{}, err
	}
	return a.credentialLocked(), nil
}

func (a *Authenticator) ensureValidLocked(ctx context.Context) error {
	if a.token == nil {
		return &pkgerrs.StateError{Operation: "token", Message: "no credential: exchange an authorization code or supply a refresh token first"}
	}
	if usable(a.token, time.Now()) {
		return nil
	}
	return a.refreshLocked(ctx, a.token.RefreshToken)
}

// usable reports whether tok can be sent as is: it has an access token and
// either no expiry or one still in the future. Unlike oauth2.Token.Valid
// there is no early-expiry margin.
func usable(tok *oauth2.Token, now time.Time) bool {
	if tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || now.Before(tok.Expiry)
}

// Refresh forces a refresh exchange using the stored refresh token.
func (a *Authenticator) Refresh(ctx context.Context) (types.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		return types.Credential{}, &pkgerrs.StateError{Operation: "refresh", Message: "no credential to refresh"}
	}
	if err := a.refreshLocked(ctx, a.token.RefreshToken); err != nil {
		return types.Credential{}, err
	}
	return a.credentialLocked(), nil
}

// Credential returns a snapshot of the stored credential.
func (a *Authenticator) Credential() (types.Credential, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		return types.Credential{}, false
	}
	return a.credentialLocked(), true
}

// UserID returns the user the credential belongs to.
func (a *Authenticator) UserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

func (a *Authenticator) refreshLocked(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return &pkgerrs.StateError{Operation: "refresh", Message: "credential expired and no refresh token is available"}
	}

	a.logger.Debug("refreshing access token")

	// An empty access token forces the token source to hit the endpoint.
	src := a.oauth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return a.tokenError("refresh", err)
	}

	a.store(tok)
	a.logger.Debug("access token refreshed", "expiry", tok.Expiry, "user_id", a.userID)
	return nil
}

// store replaces the token. The user id is only overwritten when the token
// response carries one. Callers hold mu.
func (a *Authenticator) store(tok *oauth2.Token) {
	a.token = tok
	if userID := extraString(tok, "user_id"); userID != "" {
		a.userID = userID
	}
}

func (a *Authenticator) snapshotLocked() *oauth2.Token {
	tok := *a.token
	return &tok
}

func (a *Authenticator) credentialLocked() types.Credential {
	return types.Credential{
		AccessToken:  a.token.AccessToken,
		RefreshToken: a.token.RefreshToken,
		TokenType:    a.token.Type(),
		UserID:       a.userID,
		Expiry:       a.token.Expiry,
	}
}

func (a *Authenticator) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// tokenError sorts a token endpoint failure into a transport or an
// authorization error.
func (a *Authenticator) tokenError(operation string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &pkgerrs.AuthError{
			Message: operation + " rejected by token endpoint",
			Body:    string(retrieveErr.Body),
			Err:     err,
		}
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		a.logger.Warn("token endpoint rejected request", "operation", operation, "status", authErr.StatusCode)
		return authErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &pkgerrs.RequestError{Operation: operation, URL: a.oauth.Endpoint.TokenURL, Err: err}
	}

	return &pkgerrs.AuthError{Message: fmt.Sprintf("%s failed", operation), Err: err}
}

func extraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
