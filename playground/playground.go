// Package playground is a client for the Rust playground:
// running code, reporting compiler versions, and sharing code as gists.
package playground

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/playbot/metrics"
)

// Channel is a Rust release channel.
type Channel string

const (
	Stable  Channel = "stable"
	Beta    Channel = "beta"
	Nightly Channel = "nightly"
)

// Mode is the build profile.
type Mode string

const (
	Debug   Mode = "debug"
	Release Mode = "release"
)

// ExecuteRequest is the body of an /execute call.
type ExecuteRequest struct {
	Code      string  `json:"code"`
	Channel   Channel `json:"channel"`
	CrateType string  `json:"crateType"`
	Mode      Mode    `json:"mode"`
	Tests     bool    `json:"tests"`
}

// NewExecuteRequest returns a request to build and run code as a binary
// on the stable channel in debug mode.
func NewExecuteRequest(code string) *ExecuteRequest {
	return &ExecuteRequest{
		Code:      code,
		Channel:   Stable,
		CrateType: "bin",
		Mode:      Debug,
	}
}

// ExecuteResponse is the outcome of running code.
type ExecuteResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// Version describes the compiler on a channel.
type Version struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
	Date    string `json:"date"`
}

// StatusError is returned when the playground answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("playground: %s: unexpected status %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// Config holds the client settings.
type Config struct {
	// BaseURL is the playground root (default: https://play.rust-lang.org).
	BaseURL string

	// Timeout bounds each request (default: 30s, compiling is slow).
	Timeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://play.rust-lang.org",
		Timeout: 30 * time.Second,
	}
}

// Client talks to the playground. It is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
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
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute builds and runs req.Code.
// A program that fails to compile or run is not an error; see ExecuteResponse.Success.
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	var resp ExecuteResponse
	if err := c.do(ctx, "execute", http.MethodPost, "/execute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version reports the compiler version of channel.
func (c *Client) Version(ctx context.Context, channel Channel) (*Version, error) {
	var v Version
	if err := c.do(ctx, "version", http.MethodGet, "/meta/version/"+url.PathEscape(string(channel)), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Paste stores code as a gist and returns a playground URL that opens it
// with the given channel and mode.
func (c *Client) Paste(ctx context.Context, code string, channel Channel, mode Mode) (string, error) {
	var gist struct {
		ID string `json:"id"`
	}
	body := struct {
		Code string `json:"code"`
	}{code}
	if err := c.do(ctx, "paste", http.MethodPost, "/meta/gist/", body, &gist); err != nil {
		return "", err
	}
	if gist.ID == "" {
		return "", fmt.Errorf("playground: paste: response has no gist id")
	}

	q := url.Values{}
	q.Set("gist", gist.ID)
	q.Set("version", string(channel))
	q.Set("mode", string(mode))
	return c.config.BaseURL + "/?" + q.Encode(), nil
}

// do sends in as JSON (when not nil) and decodes the response into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("playground: %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("playground: %s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordHTTPRequest("playground", "error", time.Since(start))
		return fmt.Errorf("playground: %s: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordHTTPRequest("playground", strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("playground: %s: decode response: %w", op, err)
	}
	return nil
}
