package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/types"
)

// mockResponse defines the response from the mock server.
type mockResponse struct {
	statusCode int
	body       string
}

// mockTokenServer is a mock OAuth2 token endpoint.
type mockTokenServer struct {
	t            *testing.T
	expectedUser string
	expectedPass string
	grantType    string
	mockResponse *mockResponse
	calls        atomic.Int32

	mu   sync.Mutex
	form url.Values
}

// ServeHTTP handles incoming requests to the mock server.
func (s *mockTokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)

	if r.Method != http.MethodPost {
		s.t.Errorf("expected POST request, got %s", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	user, pass, ok := r.BasicAuth()
	if !ok || user != s.expectedUser || pass != s.expectedPass {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errors":[{"errorType":"invalid_client","message":"Invalid authorization header"}],"success":false}`)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.t.Errorf("failed to parse form: %v", err)
	}
	s.mu.Lock()
	s.form = r.PostForm
	s.mu.Unlock()

	if got := r.PostForm.Get("grant_type"); got != s.grantType {
		s.t.Errorf("expected grant_type %q, got %q", s.grantType, got)
	}

	w.WriteHeader(s.mockResponse.statusCode)
	fmt.Fprint(w, s.mockResponse.body)
}

func (s *mockTokenServer) lastForm() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func newTestAuthenticator(t *testing.T, tokenURL string, grant types.GrantType) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(AuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:1234/callback",
		AuthorizeURL: "https://www.fitbit.com/oauth2/authorize",
		TokenURL:     tokenURL,
		Scope:        "activity sleep",
		GrantType:    grant,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator returned error: %v", err)
	}
	return a
}

func tokenBody(access, refresh string) string {
	return fmt.Sprintf(`{"access_token":%q,"refresh_token":%q,"token_type":"Bearer","expires_in":28800,"scope":"activity sleep","user_id":"26FWFL"}`, access, refresh)
}

func TestAuthenticator_AuthCodeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		grant        types.GrantType
		state        string
		responseType string
	}{
		{name: "auth code", grant: types.GrantAuthCode, responseType: "code"},
		{name: "implicit", grant: types.GrantImplicit, responseType: "token"},
		{name: "with state", grant: types.GrantAuthCode, state: "xyz", responseType: "code"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := newTestAuthenticator(t, "https://api.fitbit.com/oauth2/token", tc.grant)

			u, err := url.Parse(a.AuthCodeURL(tc.state))
			if err != nil {
				t.Fatalf("AuthCodeURL returned an unparsable URL: %v", err)
			}
			if u.Host != "www.fitbit.com" || u.Path != "/oauth2/authorize" {
				t.Errorf("unexpected authorize endpoint %s", u)
			}

			q := u.Query()
			want := map[string]string{
				"response_type": tc.responseType,
				"client_id":     "client-id",
				"redirect_uri":  "http://localhost:1234/callback",
				"scope":         "activity sleep",
				"state":         tc.state,
			}
			for k, expected := range want {
				if got := q.Get(k); got != expected {
					t.Errorf("expected %s=%q, got %q", k, expected, got)
				}
			}
		})
	}
}

func TestAuthenticator_BasicAuthHeader(t *testing.T) {
	a := newTestAuthenticator(t, "https://api.fitbit.com/oauth2/token", types.GrantAuthCode)

	// base64("client-id:client-secret")
	if got := a.BasicAuthHeader(); got != "Basic Y2xpZW50LWlkOmNsaWVudC1zZWNyZXQ=" {
		t.Errorf("unexpected header %q", got)
	}
}

func TestAuthenticator_BasicAuthHeaderMatchesTokenRequest(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		id     string
		secret string
	}{
		{name: "plain", id: "22942C", secret: "abcdef0123"},
		{name: "reserved characters", id: "id:with space", secret: "s3cr+t/=&%"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			received := make(chan string, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received <- r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tokenBody("access-1", "refresh-1"))
			}))
			t.Cleanup(server.Close)

			a, err := NewAuthenticator(AuthConfig{
				ClientID:     tc.id,
				ClientSecret: tc.secret,
				TokenURL:     server.URL,
				GrantType:    types.GrantAuthCode,
			})
			if err != nil {
				t.Fatalf("NewAuthenticator returned error: %v", err)
			}
			if _, err := a.Exchange(context.Background(), "code"); err != nil {
				t.Fatalf("Exchange returned error: %v", err)
			}

			if got, want := a.BasicAuthHeader(), <-received; got != want {
				t.Errorf("expected header %q as sent to the token endpoint, got %q", want, got)
			}
		})
	}
}

func TestAuthenticator_Exchange(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "client-id",
		expectedPass: "client-secret",
		grantType:    "authorization_code",
		mockResponse: &mockResponse{statusCode: http.StatusOK, body: tokenBody("access-1", "refresh-1")},
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL+"/oauth2/token", types.GrantAuthCode)

	cred, err := a.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}

	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Errorf("unexpected credential %+v", cred)
	}
	if cred.UserID != "26FWFL" || a.UserID() != "26FWFL" {
		t.Errorf("expected user id 26FWFL, got %q", cred.UserID)
	}
	if cred.Expiry.IsZero() {
		t.Error("expected credential expiry to be set")
	}

	form := mock.lastForm()
	if form.Get("code") != "the-code" {
		t.Errorf("expected code to be sent, got %q", form.Get("code"))
	}
	if form.Get("redirect_uri") != "http://localhost:1234/callback" {
		t.Errorf("expected redirect_uri to be sent, got %q", form.Get("redirect_uri"))
	}
}

func TestAuthenticator_Restore(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "client-id",
		expectedPass: "client-secret",
		grantType:    "refresh_token",
		mockResponse: &mockResponse{statusCode: http.StatusOK, body: tokenBody("access-2", "refresh-2")},
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)

	cred, err := a.Restore(context.Background(), "stored-refresh")
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}

	if got := mock.calls.Load(); got != 1 {
		t.Errorf("expected exactly one token call, got %d", got)
	}
	if mock.lastForm().Get("refresh_token") != "stored-refresh" {
		t.Errorf("expected stored refresh token to be sent, got %q", mock.lastForm().Get("refresh_token"))
	}
	if cred.AccessToken != "access-2" || cred.RefreshToken != "refresh-2" || cred.UserID != "26FWFL" {
		t.Errorf("unexpected credential %+v", cred)
	}
}

func TestAuthenticator_Init(t *testing.T) {
	a := newTestAuthenticator(t, "http://127.0.0.1:1/unreachable", types.GrantImplicit)

	cred := a.Init("implicit-token", "USER1")
	if cred.AccessToken != "implicit-token" || cred.UserID != "USER1" {
		t.Errorf("unexpected credential %+v", cred)
	}
	if !cred.Expiry.IsZero() {
		t.Errorf("implicit credential should carry no expiry, got %v", cred.Expiry)
	}

	tok, err := a.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken returned error: %v", err)
	}
	if tok.AccessToken != "implicit-token" {
		t.Errorf("unexpected token %q", tok.AccessToken)
	}
}

func TestAuthenticator_ValidToken(t *testing.T) {
	testCases := []struct {
		name          string
		expiry        time.Duration
		expectedCalls int32
		expectedToken string
	}{
		{name: "unexpired token is reused", expiry: time.Hour, expectedCalls: 0, expectedToken: "old"},
		{name: "token expiring in seconds is reused", expiry: 5 * time.Second, expectedCalls: 0, expectedToken: "old"},
		{name: "expired token is refreshed once", expiry: -time.Minute, expectedCalls: 1, expectedToken: "fresh"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockTokenServer{
				t:            t,
				expectedUser: "client-id",
				expectedPass: "client-secret",
				grantType:    "refresh_token",
				mockResponse: &mockResponse{statusCode: http.StatusOK, body: tokenBody("fresh", "refresh-next")},
			}
			server := httptest.NewServer(mock)
			t.Cleanup(server.Close)

			a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)
			oldExpiry := time.Now().Add(tc.expiry)
			a.token = &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-old", Expiry: oldExpiry}

			tok, err := a.ValidToken(context.Background())
			if err != nil {
				t.Fatalf("ValidToken returned error: %v", err)
			}

			if got := mock.calls.Load(); got != tc.expectedCalls {
				t.Errorf("expected %d token calls, got %d", tc.expectedCalls, got)
			}
			if tok.AccessToken != tc.expectedToken {
				t.Errorf("expected token %q, got %q", tc.expectedToken, tok.AccessToken)
			}
			if tc.expectedCalls > 0 && !tok.Expiry.After(oldExpiry) {
				t.Errorf("expected refreshed expiry after %v, got %v", oldExpiry, tok.Expiry)
			}
		})
	}
}

func TestAuthenticator_ValidCredential(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "client-id",
		expectedPass: "client-secret",
		grantType:    "refresh_token",
		mockResponse: &mockResponse{statusCode: http.StatusOK, body: tokenBody("fresh", "refresh-next")},
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)
	a.token = &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-old", Expiry: time.Now().Add(-time.Minute)}
	a.userID = "26FWFL"

	cred, err := a.ValidCredential(context.Background())
	if err != nil {
		t.Fatalf("ValidCredential returned error: %v", err)
	}
	if got := mock.calls.Load(); got != 1 {
		t.Errorf("expected one refresh, got %d", got)
	}
	if cred.AccessToken != "fresh" || cred.RefreshToken != "refresh-next" || cred.UserID != "26FWFL" {
		t.Errorf("unexpected credential %+v", cred)
	}
	if cred.Expired(time.Now()) {
		t.Errorf("returned credential already expired at %v", cred.Expiry)
	}

	stored, ok := a.Credential()
	if !ok || stored != cred {
		t.Errorf("expected stored credential %+v, got %+v", cred, stored)
	}
}

func TestUsable(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		tok  oauth2.Token
		want bool
	}{
		{name: "no expiry", tok: oauth2.Token{AccessToken: "a"}, want: true},
		{name: "expires later", tok: oauth2.Token{AccessToken: "a", Expiry: now.Add(time.Second)}, want: true},
		{name: "expires now", tok: oauth2.Token{AccessToken: "a", Expiry: now}, want: false},
		{name: "expired", tok: oauth2.Token{AccessToken: "a", Expiry: now.Add(-time.Second)}, want: false},
		{name: "no access token", tok: oauth2.Token{RefreshToken: "r"}, want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := usable(&tc.tok, now); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
			cred := types.Credential{AccessToken: tc.tok.AccessToken, Expiry: tc.tok.Expiry}
			if tc.tok.AccessToken != "" && usable(&tc.tok, now) == cred.Expired(now) {
				t.Errorf("usable and Credential.Expired disagree at %v", tc.tok.Expiry)
			}
		})
	}
}

func TestAuthenticator_ValidTokenConcurrentRefresh(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "client-id",
		expectedPass: "client-secret",
		grantType:    "refresh_token",
		mockResponse: &mockResponse{statusCode: http.StatusOK, body: tokenBody("fresh", "refresh-next")},
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)
	a.token = &oauth2.Token{AccessToken: "old", RefreshToken: "refresh-old", Expiry: time.Now().Add(-time.Minute)}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.ValidToken(context.Background()); err != nil {
				t.Errorf("ValidToken returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mock.calls.Load(); got != 1 {
		t.Errorf("expected a single refresh for concurrent callers, got %d", got)
	}
}

func TestAuthenticator_RefreshRejected(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "client-id",
		expectedPass: "client-secret",
		grantType:    "refresh_token",
		mockResponse: &mockResponse{
			statusCode: http.StatusBadRequest,
			body:       `{"errors":[{"errorType":"invalid_grant","message":"Refresh token invalid"}],"success":false}`,
		},
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)

	_, err := a.Restore(context.Background(), "revoked")
	if err == nil {
		t.Fatal("expected error for revoked refresh token")
	}

	var authErr *pkgerrs.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T", err)
	}
	if authErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, authErr.StatusCode)
	}
	if authErr.Body == "" {
		t.Error("expected response body on AuthError")
	}
	if _, ok := a.Credential(); ok {
		t.Error("no credential should be stored after a failed restore")
	}
}

func TestAuthenticator_WrongClientCredentials(t *testing.T) {
	mock := &mockTokenServer{
		t:            t,
		expectedUser: "other-id",
		expectedPass: "other-secret",
		grantType:    "authorization_code",
	}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	a := newTestAuthenticator(t, server.URL, types.GrantAuthCode)

	_, err := a.Exchange(context.Background(), "code")
	var authErr *pkgerrs.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T (%v)", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, authErr.StatusCode)
	}
}

func TestAuthenticator_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	tokenURL := server.URL
	server.Close()

	a := newTestAuthenticator(t, tokenURL, types.GrantAuthCode)

	_, err := a.Restore(context.Background(), "refresh")
	var reqErr *pkgerrs.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T (%v)", err, err)
	}
	if reqErr.Operation != "refresh" {
		t.Errorf("expected operation refresh, got %q", reqErr.Operation)
	}
}

func TestAuthenticator_StateErrors(t *testing.T) {
	a := newTestAuthenticator(t, "http://127.0.0.1:1/unreachable", types.GrantAuthCode)

	var stateErr *pkgerrs.StateError
	if _, err := a.ValidToken(context.Background()); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError without credential, got %v", err)
	}
	if _, err := a.Refresh(context.Background()); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError from Refresh without credential, got %v", err)
	}

	a.token = &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}
	if _, err := a.ValidToken(context.Background()); !errors.As(err, &stateErr) {
		t.Errorf("expected StateError for expired token without refresh token, got %v", err)
	}
}
