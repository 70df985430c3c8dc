// Package fetcher downloads wallpaper image bytes over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/domain"
)

const _maxImageSize = 50 * 1024 * 1024 // 50 MB, daily wallpapers stay well under

const _userAgent = "dailywall/1.0"

// HTTPFetcher handles downloading image data from HTTP/HTTPS URLs
type HTTPFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPFetcher creates a new HTTP-based fetcher instance. The client
// carries no timeout of its own; the per-item download deadline comes in
// through the context.
func NewHTTPFetcher(logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{},
	}
}

// Fetch downloads image data from the given URL. Failures are classified:
// transport errors stay as-is for connectivity detection, non-2xx responses
// and non-image bodies surface as ErrDownloadFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", _userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d for %s", domain.ErrDownloadFailed, resp.StatusCode, url)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("%w: url is not an image: %s", domain.ErrDownloadFailed, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	f.logger.Debug("Image fetched successfully",
		zap.Int("bytes", len(data)),
		zap.String("url", url))
	return data, nil
}

// WithTimeout returns a derived fetcher whose underlying client enforces a
// hard cap independent of the caller's context, as a safety net against
// stalled connections.
func (f *HTTPFetcher) WithTimeout(d time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		logger: f.logger,
		client: &http.Client{Timeout: d},
	}
}
