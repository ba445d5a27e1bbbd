package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxFrameBytes bounds a single snapshot download.
const DefaultMaxFrameBytes = 32 << 20

// HTTPCamera fetches stills from per-facing snapshot URLs, such as the
// /shot.jpg endpoint exposed by phone IP-webcam apps.
type HTTPCamera struct {
	FrontURL string
	RearURL  string
	Client   *http.Client
	MaxBytes int64 // 0 means DefaultMaxFrameBytes
}

// NewHTTPCamera returns a camera with a 10 second request timeout.
func NewHTTPCamera(frontURL, rearURL string) *HTTPCamera {
	return &HTTPCamera{
		FrontURL: frontURL,
		RearURL:  rearURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Snapshot implements Camera.
func (c *HTTPCamera) Snapshot(ctx context.Context, facing Facing) ([]byte, error) {
	url := c.RearURL
	if facing == FacingUser {
		url = c.FrontURL
	}
	if url == "" {
		return nil, fmt.Errorf("no snapshot URL configured for %s camera", facing)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot returned status %d", resp.StatusCode)
	}

	limit := c.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFrameBytes
	}
	// One byte over the limit tells a full frame apart from a cut-off one.
	frame, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(frame)) > limit {
		return nil, fmt.Errorf("snapshot exceeds %d bytes", limit)
	}
	return frame, nil
}
