package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 10

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second

	// MaxRetryDelay caps the delay taken from a Retry-After header.
	MaxRetryDelay = 30 * time.Second
)

// Client is a minimal Confluence REST client.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the number of requests per second.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		burst := max(int(requestsPerSecond), 1)
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithRetry sets the retry count and the initial backoff delay.
func WithRetry(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// NewClient creates a client for the wiki at baseURL, e.g. https://acme.atlassian.net/wiki.
// Username and password (or API token) are sent with basic auth when set.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the wiki base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON performs a GET request and decodes the JSON response into result.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, result any) error {
	ref := path
	if len(params) > 0 {
		ref += "?" + params.Encode()
	}

	resp, err := c.get(ctx, ref)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// get performs a GET request against a path relative to the base URL.
// The caller closes the response body.
func (c *Client) get(ctx context.Context, ref string) (*http.Response, error) {
	reqURL := c.baseURL + ref
	delay := c.retryDelay

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		req.Header.Set("Accept", "application/json")

		logger.Debug("GET %s", ref)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				logger.Debug("Request to %s failed, retrying in %s: %v", ref, delay, err)
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
				delay *= 2
				continue
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			URL:        ref,
		}

		if isRetryable(resp.StatusCode) && attempt < c.maxRetries {
			wait := retryAfter(resp.Header, delay)
			logger.Debug("Confluence returned %d for %s, retrying in %s", resp.StatusCode, ref, wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			delay *= 2
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, apiErr)
		}
		return nil, apiErr
	}
}

// retryAfter returns the delay requested by a Retry-After header in seconds,
// or fallback when the header is absent.
func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return fallback
	}
	return min(time.Duration(seconds)*time.Second, MaxRetryDelay)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
