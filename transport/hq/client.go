package hq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/layout"
	"github.com/wricardo/mcp-training/marsrover/game/service"
)

const (
	// DefaultURL is the mission control endpoint
	DefaultURL = "https://roverapi.reev.ca"

	// DefaultRoverID identifies this rover to HQ
	DefaultRoverID = "12856496"

	// DefaultTimeout bounds a single fetch
	DefaultTimeout = 10 * time.Second

	// Layout payloads are tiny; anything bigger is not a layout
	maxResponseBytes = 1 << 20
)

// ErrUnexpectedStatus is returned when HQ answers with a non-200 status
var ErrUnexpectedStatus = errors.New("unexpected HQ response status")

var _ service.LayoutProvider = (*Client)(nil)

// Client fetches mission layouts from HQ
type Client struct {
	url        string
	roverID    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithRoverID overrides the rover id sent to HQ
func WithRoverID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.roverID = id
		}
	}
}

// WithTimeout overrides the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates an HQ client for url; an empty url uses DefaultURL
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:        url,
		roverID:    DefaultRoverID,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the HQ endpoint
func (c *Client) URL() string {
	return c.url
}

// Fetch asks HQ for a layout. The request is a multipart form carrying
// rover_id and the reply is a layout document.
func (c *Client) Fetch(ctx context.Context) (*layout.Layout, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("rover_id", c.roverID); err != nil {
		return nil, fmt.Errorf("failed to build HQ request: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build HQ request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HQ request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact HQ: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read HQ response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	l, err := layout.Parse(data)
	if err != nil {
		return nil, err
	}
	return l, nil
}
