package capture

import (
	"context"
	"net/http"
	"time"

	"github.com/teslashibe/go-pocketbench/internal/httpc"
)

// HTTPProvider fetches a screenshot from a URL on every capture, for a
// game running on another machine behind a small screenshot server.
type HTTPProvider struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProvider returns a provider using the shared HTTP client.
func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{URL: url, Client: httpc.Client, Timeout: httpc.DefaultTimeout}
}

// CaptureFrame downloads one encoded screenshot.
func (p *HTTPProvider) CaptureFrame() ([]byte, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = httpc.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return httpc.GetBytes(ctx, p.Client, p.URL)
}
