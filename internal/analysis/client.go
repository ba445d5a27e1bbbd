package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/fishscroll/internal/errors"
	"github.com/hpungsan/fishscroll/internal/fish"
)

// AnalyzePath is the backend identification endpoint.
const AnalyzePath = "/api/analyze"

// Config configures the analysis client.
type Config struct {
	// BaseURL is the backend origin, e.g. http://127.0.0.1:8787
	BaseURL string

	// TimeoutSeconds bounds a single request. 0 means no client timeout.
	TimeoutSeconds int
}

// Client submits normalized images to the analysis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
	}
	if cfg.TimeoutSeconds > 0 {
		c.httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type errorBody struct {
	Error       string `json:"error"`
	RawResponse string `json:"rawResponse"`
}

// Analyze sends one image to the backend and returns the validated record.
// Exactly one request is made; failures are never retried here.
func (c *Client) Analyze(ctx context.Context, image string) (*fish.Analysis, error) {
	if strings.TrimSpace(image) == "" {
		return nil, errors.NewMissingInput("no image to analyze")
	}

	body, err := json.Marshal(analyzeRequest{Image: image})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AnalyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid backend URL %q: %v", c.baseURL, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, backendError(resp.StatusCode, raw)
	}

	return fish.Parse(string(raw))
}

// backendError builds BACKEND_ERROR from a non-200 response. Bodies that are
// not the JSON error envelope are kept verbatim as the raw response.
func backendError(status int, raw []byte) error {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		return errors.NewBackend(status, "", strings.TrimSpace(string(raw)))
	}
	return errors.NewBackend(status, eb.Error, eb.RawResponse)
}
