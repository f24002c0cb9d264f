// Package appliance controls the DNS blocking of a redundant pair of Pi-hole
// appliances.
package appliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

// DefaultTimeout bounds each appliance request.
const DefaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	Name     string
	BaseURL  string
	Password string
	Now      func() time.Time
}

type authResponse struct {
	Session struct {
		Valid    bool    `json:"valid"`
		SID      string  `json:"sid"`
		CSRF     string  `json:"csrf"`
		Validity float64 `json:"validity"`
	} `json:"session"`
}

// blockingFlag accepts "enabled"/"disabled" as well as JSON booleans. Other
// states such as "failed" or "unknown" are rejected.
type blockingFlag bool

func (f *blockingFlag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "enabled":
			*f = true
		case "disabled":
			*f = false
		default:
			return fmt.Errorf("blocking state %q: %w", s, model.ErrInvalidResponse)
		}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("blocking flag %s: %w", data, err)
	}
	*f = blockingFlag(b)
	return nil
}

type blockingResponse struct {
	Blocking *blockingFlag `json:"blocking"`
	Timer    *float64      `json:"timer"`
}

type blockingRequest struct {
	Blocking bool `json:"blocking"`
	Timer    int  `json:"timer"`
}

// Client talks to one appliance. It authenticates lazily on first use and
// again whenever the session has expired or was rejected.
type Client struct {
	name     string
	baseURL  string
	password string
	fetcher  *fetcher.Fetcher
	now      func() time.Time
	log      *slog.Logger

	mu   sync.Mutex
	sess *session
}

// NewClient creates a Client. The fetcher's HTTP client carries the request
// timeout and TLS settings.
func NewClient(f *fetcher.Fetcher, cfg Config, log *slog.Logger) *Client {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		name:     cfg.Name,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		password: cfg.Password,
		fetcher:  f,
		now:      cfg.Now,
		log:      log.With("appliance", cfg.Name),
	}
}

// Name returns the configured appliance name.
func (c *Client) Name() string { return c.name }

// Status reads the current blocking state.
func (c *Client) Status(ctx context.Context) (model.BlockingStatus, error) {
	st, err := c.blocking(ctx, http.MethodGet, nil)
	if err != nil {
		return model.BlockingStatus{}, fmt.Errorf("get blocking status of %s: %w", c.name, err)
	}
	return st, nil
}

// Disable turns blocking off for d and returns the state reported back.
func (c *Client) Disable(ctx context.Context, d time.Duration) (model.BlockingStatus, error) {
	req := blockingRequest{Blocking: false, Timer: int(math.Round(d.Seconds()))}
	st, err := c.blocking(ctx, http.MethodPost, req)
	if err != nil {
		return model.BlockingStatus{}, fmt.Errorf("disable blocking on %s: %w", c.name, err)
	}
	c.log.Info("disabled blocking", "timer", d, "blocking", st.Blocking)
	return st, nil
}

func (c *Client) blocking(ctx context.Context, method string, in any) (model.BlockingStatus, error) {
	sess, err := c.session(ctx)
	if err != nil {
		return model.BlockingStatus{}, err
	}

	req, err := newJSONRequest(ctx, method, c.baseURL+"/api/dns/blocking", in)
	if err != nil {
		return model.BlockingStatus{}, err
	}
	req.Header.Set("X-FTL-SID", sess.sid)
	req.Header.Set("X-FTL-CSRF", sess.csrf)

	code, body, err := c.fetcher.Send(req)
	if err != nil {
		return model.BlockingStatus{}, err
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		c.drop(sess)
		return model.BlockingStatus{}, fmt.Errorf("session rejected with status %d: %w", code, model.ErrAuthFailed)
	}
	if code != http.StatusOK {
		return model.BlockingStatus{}, &fetcher.StatusError{Method: method, URL: req.URL.Path, Code: code}
	}

	var resp blockingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.BlockingStatus{}, fmt.Errorf("decode blocking status: %w: %w", model.ErrInvalidResponse, err)
	}
	if resp.Blocking == nil {
		return model.BlockingStatus{}, fmt.Errorf("blocking status without flag: %w", model.ErrInvalidResponse)
	}

	st := model.BlockingStatus{Blocking: bool(*resp.Blocking)}
	if resp.Timer != nil {
		timer := time.Duration(*resp.Timer * float64(time.Second))
		st.Timer = &timer
	}
	return st, nil
}

// session returns a valid session, authenticating when there is none.
func (c *Client) session(ctx context.Context) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.validFor(c.now()) {
		return c.sess, nil
	}
	sess, err := c.refresh(ctx)
	if err != nil {
		c.sess = nil
		return nil, err
	}
	c.sess = sess
	return sess, nil
}

// refresh authenticates with the password and returns a new session.
func (c *Client) refresh(ctx context.Context) (*session, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/api/auth", map[string]string{"password": c.password})
	if err != nil {
		return nil, err
	}

	code, body, err := c.fetcher.Send(req)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return nil, fmt.Errorf("authenticate: status %d: %w", code, model.ErrAuthFailed)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("authenticate: %w", &fetcher.StatusError{Method: req.Method, URL: req.URL.Path, Code: code})
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode session: %w: %w", model.ErrInvalidResponse, err)
	}
	if !resp.Session.Valid {
		return nil, fmt.Errorf("authenticate: invalid credentials: %w", model.ErrAuthFailed)
	}
	if resp.Session.SID == "" {
		return nil, fmt.Errorf("authenticate: session without id: %w", model.ErrAuthFailed)
	}

	validity := time.Duration(resp.Session.Validity * float64(time.Second))
	c.log.Debug("authenticated", "validity", validity)
	return &session{
		sid:        resp.Session.SID,
		csrf:       resp.Session.CSRF,
		validUntil: c.now().Add(validity),
	}, nil
}

// drop forgets sess unless it was already replaced.
func (c *Client) drop(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == sess {
		c.sess = nil
	}
}

func newJSONRequest(ctx context.Context, method, url string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
