// Package cratesio looks up crate metadata on crates.io.
package cratesio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/playbot/metrics"
)

// ErrNotFound is returned when crates.io has no crate with the requested name.
var ErrNotFound = errors.New("cratesio: crate not found")

// Config holds the client settings.
type Config struct {
	// BaseURL is the API root (default: https://crates.io/api/v1).
	BaseURL string

	// Timeout bounds each request (default: 10s).
	Timeout time.Duration

	// UserAgent is required by the crates.io crawler policy.
	UserAgent string
}

// DefaultConfig returns the production settings.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://crates.io/api/v1",
		Timeout:   10 * time.Second,
		UserAgent: "playbot (https://github.com/Travis-Britz/playbot)",
	}
}

// Crate is the subset of crate metadata the bot shows.
type Crate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxVersion  string `json:"max_version"`
}

// Client is a crates.io API client. It is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. with one from httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request counts and latency to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a client for config. A nil config uses DefaultConfig.
func NewClient(config *Config, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CrateInfo fetches the metadata of the crate called name.
func (c *Client) CrateInfo(ctx context.Context, name string) (*Crate, error) {
	endpoint := strings.TrimSuffix(c.config.BaseURL, "/") + "/crates/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cratesio: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordHTTPRequest("cratesio", "error", time.Since(start))
		return nil, fmt.Errorf("cratesio: get %s: %w", name, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordHTTPRequest("cratesio", strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cratesio: get %s: unexpected status %s", name, resp.Status)
	}

	var info struct {
		Crate *Crate `json:"crate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("cratesio: decode %s: %w", name, err)
	}
	if info.Crate == nil {
		return nil, fmt.Errorf("cratesio: decode %s: response has no crate", name)
	}
	return info.Crate, nil
}
