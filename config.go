package fitbyte

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
	"github.com/jamesprial/go-fitbyte/pkg/types"
)

const (
	// Version is the library version reported in the User-Agent header.
	Version = "0.1.0"
	// RepoURL is the source repository reported in the User-Agent header.
	RepoURL = "https://github.com/jamesprial/go-fitbyte"

	DefaultRedirectURI  = "http://localhost:1234"
	DefaultSiteURL      = "https://api.fitbit.com"
	DefaultAuthorizeURL = "https://www.fitbit.com/oauth2/authorize"
	DefaultTokenURL     = "https://api.fitbit.com/oauth2/token"
	DefaultUnitSystem   = "en_US"
	DefaultLocale       = "en_US"
	DefaultScope        = "activity nutrition profile settings sleep social weight heartrate"
	DefaultAPIVersion   = "1"
)

// Defaults holds the fallback values applied to every Config field left
// empty. It is passed to NewClientWithDefaults by value and never mutated.
type Defaults struct {
	RedirectURI   string
	SiteURL       string
	AuthorizeURL  string
	TokenURL      string
	UnitSystem    string
	Locale        string
	Scope         string
	APIVersion    string
	SnakeCase     bool
	SymbolizeKeys bool
	GrantType     types.GrantType
}

// DefaultDefaults returns the library's built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		RedirectURI:  DefaultRedirectURI,
		SiteURL:      DefaultSiteURL,
		AuthorizeURL: DefaultAuthorizeURL,
		TokenURL:     DefaultTokenURL,
		UnitSystem:   DefaultUnitSystem,
		Locale:       DefaultLocale,
		Scope:        DefaultScope,
		APIVersion:   DefaultAPIVersion,
		GrantType:    types.GrantAuthCode,
	}
}

// Config holds the configuration for the Fitbit client.
//
// ClientID and ClientSecret are required. Every other field falls back to
// Defaults when left empty. For the authorization code flow, set
// RefreshToken to resume a session saved from an earlier run. For the
// implicit flow, AccessToken and UserID are required.
//
// Example:
//
//	config := &fitbyte.Config{
//		ClientID:     "22942C",
//		ClientSecret: "your-client-secret",
//		RedirectURI:  "http://localhost:1234/callback",
//		RefreshToken: savedRefreshToken,
//		SnakeCase:    fitbyte.Bool(true),
//	}
type Config struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	RedirectURI  string `yaml:"redirect_uri"`
	SiteURL      string `yaml:"site_url"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`

	// UnitSystem is sent as Accept-Language and selects the measurement
	// units of responses (en_US, en_GB or any other value for metric).
	UnitSystem string `yaml:"unit_system"`
	// Locale is sent as Accept-Locale.
	Locale     string `yaml:"locale"`
	Scope      string `yaml:"scope"`
	APIVersion string `yaml:"api_version"`

	// SnakeCase and SymbolizeKeys set the default response key
	// normalization. nil means use the Defaults value.
	SnakeCase     *bool `yaml:"snake_case"`
	SymbolizeKeys *bool `yaml:"symbolize_keys"`

	GrantType types.GrantType `yaml:"grant_type"`

	RefreshToken string `yaml:"refresh_token"`
	AccessToken  string `yaml:"access_token"`
	UserID       string `yaml:"user_id"`

	// RateLimit throttles resource requests. Defaults to Fitbit's 150
	// requests per hour.
	RateLimit *RateLimitConfig `yaml:"rate_limit"`

	// HTTPClient to use for token and resource requests.
	// Defaults to a client with DefaultTimeout if not specified.
	HTTPClient *http.Client `yaml:"-"`

	// Logger for structured diagnostics.
	// Optional. If provided, debug information will be logged during API calls.
	Logger *slog.Logger `yaml:"-"`
}

// Bool returns a pointer to b, for the optional flags of Config and
// RequestOptions.
func Bool(b bool) *bool {
	return &b
}

// settings is a Config with every default applied.
type settings struct {
	clientID      string
	clientSecret  string
	redirectURI   string
	siteURL       string
	authorizeURL  string
	tokenURL      string
	unitSystem    string
	locale        string
	scope         string
	apiVersion    string
	snakeCase     bool
	symbolizeKeys bool
	grantType     types.GrantType
}

// validate checks the fields that have no default.
func (c *Config) validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &pkgerrs.ConfigError{Fields: missing, Message: "required arguments"}
	}

	if c.GrantType != "" && !c.GrantType.Valid() {
		return &pkgerrs.ConfigError{
			Field:   "grant_type",
			Message: fmt.Sprintf("unsupported grant_type %q: please use %q or %q", c.GrantType, types.GrantAuthCode, types.GrantImplicit),
		}
	}
	return nil
}

func (c *Config) resolve(d Defaults) settings {
	s := settings{
		clientID:      c.ClientID,
		clientSecret:  c.ClientSecret,
		redirectURI:   orDefault(c.RedirectURI, d.RedirectURI),
		siteURL:       orDefault(c.SiteURL, d.SiteURL),
		authorizeURL:  orDefault(c.AuthorizeURL, d.AuthorizeURL),
		tokenURL:      orDefault(c.TokenURL, d.TokenURL),
		unitSystem:    orDefault(c.UnitSystem, d.UnitSystem),
		locale:        orDefault(c.Locale, d.Locale),
		scope:         orDefault(c.Scope, d.Scope),
		apiVersion:    orDefault(c.APIVersion, d.APIVersion),
		snakeCase:     d.SnakeCase,
		symbolizeKeys: d.SymbolizeKeys,
		grantType:     c.GrantType,
	}
	if c.SnakeCase != nil {
		s.snakeCase = *c.SnakeCase
	}
	if c.SymbolizeKeys != nil {
		s.symbolizeKeys = *c.SymbolizeKeys
	}
	if s.grantType == "" {
		s.grantType = d.GrantType
	}
	if s.grantType == "" {
		s.grantType = types.GrantAuthCode
	}
	return s
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// LoadConfigFile reads a YAML configuration file. Keys use the snake_case
// names of the Config yaml tags.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &pkgerrs.ConfigError{Message: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return &cfg, nil
}

// ConfigFromEnv builds a Config from FITBYTE_* environment variables. When
// dotenv is true a .env file in the working directory is loaded first; a
// missing file is not an error.
func ConfigFromEnv(dotenv bool) (*Config, error) {
	if dotenv {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := &Config{
		ClientID:     os.Getenv("FITBYTE_CLIENT_ID"),
		ClientSecret: os.Getenv("FITBYTE_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("FITBYTE_REDIRECT_URI"),
		SiteURL:      os.Getenv("FITBYTE_SITE_URL"),
		AuthorizeURL: os.Getenv("FITBYTE_AUTHORIZE_URL"),
		TokenURL:     os.Getenv("FITBYTE_TOKEN_URL"),
		UnitSystem:   os.Getenv("FITBYTE_UNIT_SYSTEM"),
		Locale:       os.Getenv("FITBYTE_LOCALE"),
		Scope:        os.Getenv("FITBYTE_SCOPE"),
		APIVersion:   os.Getenv("FITBYTE_API_VERSION"),
		GrantType:    types.GrantType(os.Getenv("FITBYTE_GRANT_TYPE")),
		RefreshToken: os.Getenv("FITBYTE_REFRESH_TOKEN"),
		AccessToken:  os.Getenv("FITBYTE_ACCESS_TOKEN"),
		UserID:       os.Getenv("FITBYTE_USER_ID"),
	}

	var err error
	if cfg.SnakeCase, err = envBool("FITBYTE_SNAKE_CASE"); err != nil {
		return nil, err
	}
	if cfg.SymbolizeKeys, err = envBool("FITBYTE_SYMBOLIZE_KEYS"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envBool(name string) (*bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: name, Message: err.Error()}
	}
	return &b, nil
}
