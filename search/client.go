// Package search talks to the article search API. A Client fetches one page
// at a time, retrying transient failures with exponential backoff while
// holding to the provider's request rate.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/deskstats/article"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// ErrShapeViolation reports a response body that lacks response.meta.hits or
// response.docs.
var ErrShapeViolation = errors.New("response is missing meta.hits or docs")

// TransportError is returned when a page could not be fetched after all
// retries were spent.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is an HTTP response with a non-200 status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.Code, http.StatusText(e.Code))
}

// Page is one decoded page of results.
type Page struct {
	Number  int
	Hits    int
	Records []article.RawRecord
}

type searchResponse struct {
	Response *struct {
		Meta *struct {
			Hits *int `json:"hits"`
		} `json:"meta"`
		Docs []article.RawRecord `json:"docs"`
	} `json:"response"`
}

// Client fetches pages for a Config.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the given configuration. A nil logger uses
// slog.Default().
func NewClient(config *Config, logger *slog.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if config.Interval > 0 {
		limit = rate.Every(config.Interval)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Config returns the client's configuration.
func (c *Client) Config() *Config {
	return c.config
}

// FetchPage fetches and decodes one page. Transport failures come back as
// *TransportError once retries are exhausted; a decodable body of the wrong
// shape returns ErrShapeViolation without retrying.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	pageURL := c.config.PageURL(page)

	body, err := c.fetchWithRetry(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode page %d: %w", page, err)
	}
	if resp.Response == nil || resp.Response.Meta == nil ||
		resp.Response.Meta.Hits == nil || resp.Response.Docs == nil {
		return nil, fmt.Errorf("page %d: %w", page, ErrShapeViolation)
	}

	return &Page{
		Number:  page,
		Hits:    *resp.Response.Meta.Hits,
		Records: resp.Response.Docs,
	}, nil
}

// fetchWithRetry performs the GET, retrying retryable failures up to
// MaxRetries times with a delay of RetryDelay * 2^attempt.
func (c *Client) fetchWithRetry(ctx context.Context, pageURL string) ([]byte, error) {
	attempts := 0
	delay := c.config.RetryDelay

	for {
		attempts++
		body, err := c.fetch(ctx, pageURL)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil || !isRetryable(err) || attempts > c.config.MaxRetries {
			return nil, &TransportError{URL: redact(pageURL, c.config.APIKey), Attempts: attempts, Err: err}
		}

		c.logger.Debug("retrying request", "attempt", attempts, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, &TransportError{URL: redact(pageURL, c.config.APIKey), Attempts: attempts, Err: err}
		}
		delay *= 2
	}
}

func (c *Client) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	// Every attempt, retries included, counts against the provider's cap
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The client error quotes the request URL, key included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact(urlErr.URL, c.config.APIKey)
		}
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// isRetryable reports whether a failed attempt may succeed if repeated.
// Network errors, 429 and 5xx are transient; other statuses are not.
func isRetryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= 500
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// redact hides the API key in URLs that end up in errors and logs.
func redact(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}
