package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/go-fitbyte/pkg/errors"
)

// Client manages communication with the Fitbit resource API.
type Client struct {
	client  *http.Client
	BaseURL *url.URL
	headers http.Header
	logger  *slog.Logger

	limiter        *rate.Limiter
	mu             sync.Mutex
	forceWaitUntil time.Time
}

// RateLimitConfig controls how requests are throttled before reaching Fitbit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 2.5 if zero,
	// which spreads Fitbit's 150 requests per hour evenly.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	// Burst allows short spikes above the steady-state rate. Defaults to 150 if zero.
	Burst int `yaml:"burst"`
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

const (
	DefaultRequestsPerMinute = 150.0 / 60.0
	DefaultRateLimitBurst    = 150
	SecondsPerMinute         = 60.0
	ParseFloatBitSize        = 64

	rateLimitRemainingHeader = "Fitbit-Rate-Limit-Remaining"
	rateLimitResetHeader     = "Fitbit-Rate-Limit-Reset"
)

// NewClient returns a new resource API client. headers are set on every
// request. If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, baseURL string, headers http.Header, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "site_url", Message: err.Error()}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:  httpClient,
		BaseURL: parsedURL,
		headers: headers.Clone(),
		logger:  logger,
		limiter: buildLimiter(*rateCfg),
	}, nil
}

// NewRequest creates an API request bearing accessToken. A relative URL can
// be provided in path, in which case it is resolved relative to the BaseURL
// of the Client.
func (c *Client) NewRequest(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Request, error) {
	u, err := c.BaseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: strings.ToLower(method), URL: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: strings.ToLower(method), URL: u.String(), Err: err}
	}

	for name, values := range c.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// Do sends an API request and returns the response with its body read. The
// status code is not interpreted here.
func (c *Client) Do(req *http.Request) (*Response, error) {
	operation := strings.ToLower(req.Method)

	if err := c.waitForRateLimit(req.Context()); err != nil {
		return nil, &pkgerrs.RequestError{Operation: operation, URL: req.URL.String(), Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: operation, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	c.applyRateHeaders(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: operation, URL: req.URL.String(), Message: "failed to read response body", Err: err}
	}

	c.logger.Debug("fitbit API response", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "bytes", len(body))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}

	return rate.NewLimiter(rate.Limit(requestsPerMinute/SecondsPerMinute), burst)
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.waitForForcedDelay(ctx); err != nil {
		return err
	}

	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) waitForForcedDelay(ctx context.Context) error {
	for {
		c.mu.Lock()
		waitUntil := c.forceWaitUntil
		c.mu.Unlock()

		if waitUntil.IsZero() {
			return nil
		}

		now := time.Now()
		if !now.Before(waitUntil) {
			c.clearForcedDelay(waitUntil)
			return nil
		}

		c.logger.Debug("rate limit exhausted, delaying request", "until", waitUntil)

		timer := time.NewTimer(waitUntil.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			c.clearForcedDelay(waitUntil)
		}
	}
}

func (c *Client) clearForcedDelay(previous time.Time) {
	c.mu.Lock()
	if previous.Equal(c.forceWaitUntil) {
		c.forceWaitUntil = time.Time{}
	}
	c.mu.Unlock()
}

// applyRateHeaders defers later requests when Fitbit reports the quota as
// spent, either through Retry-After on a 429 or the rate limit headers.
func (c *Client) applyRateHeaders(resp *http.Response) {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.ParseFloat(retryAfter, ParseFloatBitSize); err == nil && seconds > 0 {
			c.deferRequests(time.Duration(seconds * float64(time.Second)))
		}
	}

	remainingHeader := resp.Header.Get(rateLimitRemainingHeader)
	resetHeader := resp.Header.Get(rateLimitResetHeader)
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, errRemaining := strconv.ParseFloat(remainingHeader, ParseFloatBitSize)
	resetSeconds, errReset := strconv.ParseFloat(resetHeader, ParseFloatBitSize)
	if errRemaining != nil || errReset != nil || resetSeconds <= 0 {
		return
	}

	if remaining <= 0 {
		c.deferRequests(time.Duration(resetSeconds * float64(time.Second)))
	}
}

func (c *Client) deferRequests(d time.Duration) {
	if d <= 0 {
		return
	}

	until := time.Now().Add(d)

	c.mu.Lock()
	if until.After(c.forceWaitUntil) {
		c.forceWaitUntil = until
	}
	c.mu.Unlock()
}
