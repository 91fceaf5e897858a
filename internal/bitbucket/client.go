package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the Bitbucket Cloud REST API root.
	DefaultBaseURL = "https://api.bitbucket.org/2.0"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// pullRequestPageLen is the page size for pull request listings.
	pullRequestPageLen = 50

	// commitPageLen is the page size for commit history walks.
	commitPageLen = 100

	// maxErrorBody bounds how much of an error response body is kept for
	// the error message.
	maxErrorBody = 512
)

// Credentials authenticates against the Bitbucket API. Token takes
// precedence over basic username/password auth when both are set.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Client issues paginated, rate-limited fetches against the Bitbucket API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials
	limiter    *RateLimiter
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Useful for testing.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRateLimit overrides the default rate limit configuration.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(cfg) }
}

// NewClient creates a Bitbucket API client. With a token credential the
// underlying transport attaches the bearer token; basic credentials are set
// per request.
func NewClient(ctx context.Context, creds Credentials, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		creds:   creds,
		limiter: NewRateLimiter(DefaultRateLimit),
		log:     log,
	}

	if creds.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
		tc := oauth2.NewClient(ctx, ts)
		tc.Timeout = DefaultTimeout
		c.httpClient = tc
	} else {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint joins the API root with a relative path and query values.
func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// getJSON issues one rate-limited GET against an absolute URL and decodes
// the JSON body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	if rawURL == "" {
		return ErrEmptyPageURL
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds.Token == "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.RecordRateLimitError(retryAfterSeconds(resp))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			URL:        rawURL,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}

// retryAfterSeconds parses the Retry-After response header, 0 when absent or
// malformed.
func retryAfterSeconds(resp *http.Response) int {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil {
		return 0
	}
	return seconds
}

// withPageLen returns rawURL with its pagelen query parameter set,
// preserving any query the URL already carries.
func withPageLen(rawURL string, pagelen int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("pagelen", strconv.Itoa(pagelen))
	u.RawQuery = q.Encode()
	return u.String()
}
