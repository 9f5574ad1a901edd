package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/cascadiacollections/apinline/internal/backoff"
)

// Fetcher retrieves one JSON document with retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string, req Request) (Result, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

const (
	defaultUserAgent = "apinline/0.1"
	maxBodyBytes     = 32 << 20
)

// Request carries the per-endpoint request settings.
type Request struct {
	Method  string
	Headers map[string]string
	Body    string
	// Timeout bounds each attempt; zero disables the per-attempt deadline.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first.
	Retries int
	// Delay is the base wait between attempts; zero retries immediately.
	Delay time.Duration
}

// Result is a successfully fetched document.
type Result struct {
	// Data is the response body as compact JSON.
	Data       json.RawMessage
	StatusCode int
	Attempts   int
	Charset    string
}

// Client performs JSON requests with per-attempt timeouts and bounded
// retries on 5xx and transport failures.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.With(slog.String("component", "fetch"))
		}
	}
}

// WithSleep replaces the wait between attempts. Tests use it to observe
// backoff without sleeping.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// NewClient builds a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		logger:    slog.New(slog.DiscardHandler),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests url until it yields JSON, the failure is not retryable, or
// req.Retries additional attempts have been spent. The returned error is
// always an *Error.
func (c *Client) Fetch(ctx context.Context, url string, req Request) (Result, error) {
	if c == nil {
		return Result{}, fmt.Errorf("client is nil")
	}
	retries := max(req.Retries, 0)

	for attempt := 1; ; attempt++ {
		res, err := c.attempt(ctx, url, req)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		err.URL = url
		err.Attempts = attempt

		if ctx.Err() != nil {
			return Result{Attempts: attempt}, err
		}
		if !err.retryable() || attempt > retries {
			return Result{Attempts: attempt, StatusCode: err.StatusCode}, err
		}

		wait := backoff.Delay(attempt-1, req.Delay)
		c.logger.Info("retrying request",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Int("remaining", retries-attempt+1),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		if wait > 0 {
			if serr := c.sleep(ctx, wait); serr != nil {
				return Result{Attempts: attempt}, err
			}
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string, req Request) (Result, *Error) {
	actx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(actx, method, url, body)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err), permanent: true}
	}
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("User-Agent", c.userAgent)
	if req.Body != "" {
		hreq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, Timeout: isTimeout(ctx, err), Err: fmt.Errorf("execute request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Result{}, &Error{Kind: KindHTTPStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}

	reader, cs := decodeBody(resp.Body, resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes+1))
	if err != nil {
		return Result{}, &Error{Kind: KindNetwork, Timeout: isTimeout(ctx, err), Err: fmt.Errorf("read response: %w", err)}
	}
	if len(raw) > maxBodyBytes {
		return Result{}, &Error{Kind: KindParse, StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", maxBodyBytes)}
	}

	data, err := compactJSON(raw)
	if err != nil {
		return Result{}, &Error{Kind: KindParse, StatusCode: resp.StatusCode, Err: err}
	}
	return Result{Data: data, StatusCode: resp.StatusCode, Charset: cs}, nil
}

func (e *Error) retryable() bool {
	if e.permanent {
		return false
	}
	switch e.Kind {
	case KindNetwork:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// decodeBody transcodes non-UTF-8 bodies according to the declared charset.
func decodeBody(r io.Reader, contentType string) (io.Reader, string) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, "utf-8"
	}
	label := strings.TrimSpace(params["charset"])
	if label == "" {
		return r, "utf-8"
	}
	enc, name := charset.Lookup(label)
	if enc == nil || name == "utf-8" {
		return r, "utf-8"
	}
	return transform.NewReader(r, enc.NewDecoder()), name
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func compactJSON(raw []byte) (json.RawMessage, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !json.Valid(raw) {
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, errors.New("empty body")
		}
		var probe any
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid json")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

func isTimeout(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
