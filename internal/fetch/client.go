// Package fetch retrieves link targets over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/utils"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 20 << 20
)

// ErrBodyTooLarge is returned by ReadBody when the body exceeds the cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Config tunes the client. Zero values fall back to defaults.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// Response is a completed request whose body has not been read yet.
type Response struct {
	StatusCode int
	// Header holds lowercased, filtered response headers.
	Header  map[string][]string
	Body    io.ReadCloser
	maxBody int64
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ReadBody reads and closes the body, failing when it exceeds the
// configured cap.
func (r *Response) ReadBody() ([]byte, error) {
	defer utils.MustClose(r.Body)

	body, err := io.ReadAll(io.LimitReader(r.Body, r.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > r.maxBody {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// Close discards the body.
func (r *Response) Close() error {
	return r.Body.Close()
}

// Client performs one GET per link.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
}

// New builds a client with its own http.Client.
func New(cfg Config) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		http: &http.Client{
			Timeout:       cfg.Timeout,
			CheckRedirect: RedirectPolicy(cfg.MaxRedirects),
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
}

// Fetch issues a GET for url. When no response could be obtained (the host
// is unreachable, the TLS handshake fails or the connection drops) it
// returns nil, nil so callers can treat it as "try again later".
// Cancellation of ctx and the redirect limit stay errors.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil && IsUnreachable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     FilterHeaders(resp.Header),
		Body:       resp.Body,
		maxBody:    c.maxBody,
	}, nil
}

// IsUnreachable reports whether err from http.Client.Do means no response
// was obtained from the host. Redirect limit and cancellation do not count.
func IsUnreachable(err error) bool {
	if errors.Is(err, ErrTooManyRedirects) || errors.Is(err, context.Canceled) {
		return false
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
