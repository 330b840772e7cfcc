package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/hashicorp/go-retryablehttp"
)

const maxBodySize = 16 << 20

// Fetcher performs bounded GET requests against feed endpoints.
type Fetcher struct {
	client *retryablehttp.Client
}

// NewFetcher builds a fetcher whose requests each time out after timeout and
// are retried retryMax times on transport errors and 5xx responses.
func NewFetcher(timeout time.Duration, retryMax int, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = timeout
	client.RetryMax = retryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.Logger = logger.With("component", "feeds")
	return &Fetcher{client: client}
}

// Get returns the body of a 200 response. Every other outcome is an
// apperrors.ErrFeedFetch.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", apperrors.ErrFeedFetch, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", apperrors.ErrFeedFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", apperrors.ErrFeedFetch, url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrFeedFetch, url, err)
	}
	return body, nil
}
