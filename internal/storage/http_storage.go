package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

const (
	defaultFetchTimeout = 30 * time.Second
	fetchAttempts       = 3
)

// HTTPImageFetcher downloads shelf photos over HTTP(S).
type HTTPImageFetcher struct {
	client  *http.Client
	backoff func(attempt int) time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. A non-positive timeout
// falls back to 30s.
func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	// Tuned for single photo downloads rather than bulk traffic
	transport := &http.Transport{
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

// FetchImage downloads and decodes ref. Network failures and 5xx responses
// are retried; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, */*")
	req.Header.Set("User-Agent", "Go-Shelf-Inspector/1.0")

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			if err := h.sleep(ctx, attempt-1); err != nil {
				return nil, apperrors.NewTimeoutError("image download cancelled", err)
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			logger.WithFields(logrus.Fields{"url": ref, "attempt": attempt + 1}).
				WithError(err).Warn("Image download failed")
			continue
		}

		if resp.StatusCode == http.StatusOK {
			img, err := decodeImage(ref, resp.Body)
			resp.Body.Close()
			return img, err
		}
		resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("client error: status code %d", resp.StatusCode)
			break
		}
		lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch image after %d attempts", fetchAttempts), lastErr)
}

func (h *HTTPImageFetcher) sleep(ctx context.Context, attempt int) error {
	d := h.backoff(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
