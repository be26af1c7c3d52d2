package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

type Config struct {
	// Minimum spacing between requests to the source; zero disables pacing.
	RequestInterval time.Duration
	CallTimeout     time.Duration
	UserAgent       string
	HTTPClient      *http.Client
}

// Client fetches listing pages, article pages and PDFs. All requests share one
// limiter so the source sees at most one request per RequestInterval.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	userAgent   string
	callTimeout time.Duration
}

func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}

	return &Client{
		http:        httpClient,
		limiter:     rate.NewLimiter(limit, 1),
		userAgent:   cfg.UserAgent,
		callTimeout: callTimeout,
	}
}

// fetch issues a paced GET and hands the body to fn. The call timeout covers
// reading the body as well.
func (c *Client) fetch(ctx context.Context, url string, fn func(io.Reader) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Code: resp.StatusCode}
	}

	return fn(resp.Body)
}
