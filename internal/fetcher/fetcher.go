// Package fetcher performs upstream HTTP requests and classifies their failures.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/mmcdole/gofeed"

	"homeboard/internal/model"
)

const (
	userAgent   = "homeboard/1.0"
	maxBodySize = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-success HTTP status. It classifies as
// model.ErrInvalidResponse.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s %s -> %d", e.Method, e.URL, e.Code)
}

// Unwrap lets errors.Is match the taxonomy sentinel.
func (e *StatusError) Unwrap() error {
	return model.ErrInvalidResponse
}

// Fetcher downloads upstream documents.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client. Per-call timeouts are the
// client's responsibility.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Send performs req and returns the status code and the (size-limited) body.
// Transport failures are classified; HTTP statuses are left to the caller.
func (f *Fetcher) Send(req *http.Request) (int, []byte, error) {
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, Classify(fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, Classify(fmt.Errorf("read body: %w", err))
	}
	return resp.StatusCode, body, nil
}

// Get downloads url and returns the body of a 200 response.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	code, body, err := f.Send(req)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, &StatusError{Method: req.Method, URL: url, Code: code}
	}
	return body, nil
}

// GetJSON downloads url and decodes the JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w: %w", url, model.ErrInvalidResponse, err)
	}
	return nil
}

// Feed downloads and parses an RSS or Atom feed.
func (f *Fetcher) Feed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %w", model.ErrInvalidResponse, err)
	}
	return feed, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// Classify wraps a transport error with model.ErrTimeout or
// model.ErrUnreachable. Already classified errors and caller cancellation
// pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrTimeout) || errors.Is(err, model.ErrUnreachable) || errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", model.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", model.ErrUnreachable, err)
}
