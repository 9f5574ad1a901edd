package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/cascadiacollections/apinline/internal/fetch"
)

// ErrInvalidJSON is reported when a data file is served but does not parse.
var ErrInvalidJSON = errors.New("invalid json")

// StatusError is reported when a data file request answers non-2xx.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// State is the observable result of a lookup.
type State struct {
	Data      json.RawMessage
	IsLoading bool
	Err       error
}

// Globals looks up data published at build time by variable name.
type Globals interface {
	Lookup(name string) (json.RawMessage, bool)
}

// MapGlobals is a Globals backed by a map, as read from the globals
// manifest.
type MapGlobals map[string]json.RawMessage

// Lookup implements Globals.
func (m MapGlobals) Lookup(name string) (json.RawMessage, bool) {
	data, ok := m[name]
	if !ok || len(data) == 0 || string(data) == "null" {
		return nil, false
	}
	return data, true
}

// LoadManifest reads a globals manifest written by the build.
func LoadManifest(path string) (MapGlobals, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read globals manifest: %w", err)
	}
	var globals MapGlobals
	if err := json.Unmarshal(data, &globals); err != nil {
		return nil, fmt.Errorf("%w: globals manifest %s: %v", ErrInvalidJSON, path, err)
	}
	return globals, nil
}

// Hook resolves a variable to data: the published global when present,
// otherwise a single GET of the data file relative to BaseURL.
type Hook struct {
	Globals Globals
	BaseURL string
	// Fetcher performs the fallback request; nil uses an HTTP client built
	// from Client.
	Fetcher fetch.Fetcher
	Client  *http.Client
	Logger  *slog.Logger
}

// FetchOption customises the fallback request.
type FetchOption func(*fetch.Request)

// WithMethod sets the request method.
func WithMethod(method string) FetchOption {
	return func(r *fetch.Request) { r.Method = method }
}

// WithHeader adds a request header.
func WithHeader(key, value string) FetchOption {
	return func(r *fetch.Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// Resolve blocks until the data for variableName is known. Failures are
// reported in State.Err with nil Data; Resolve never panics.
func (h *Hook) Resolve(ctx context.Context, variableName, jsonFilePath string, opts ...FetchOption) (st State) {
	defer func() {
		if r := recover(); r != nil {
			st = State{Err: fmt.Errorf("resolve %s: %v", variableName, r)}
		}
	}()

	if h.Globals != nil {
		if data, ok := h.Globals.Lookup(variableName); ok {
			return State{Data: data}
		}
	}

	url, err := h.url(jsonFilePath)
	if err != nil {
		return State{Err: err}
	}
	req := fetch.Request{}
	for _, opt := range opts {
		opt(&req)
	}
	res, err := h.fetcher().Fetch(ctx, url, req)
	if err != nil {
		err = translate(url, err)
		h.logger().Debug("data file request failed", slog.String("url", url), slog.String("error", err.Error()))
		return State{Err: err}
	}
	return State{Data: res.Data}
}

func (h *Hook) url(jsonFilePath string) (string, error) {
	path := strings.TrimLeft(strings.TrimSpace(jsonFilePath), "/")
	if path == "" {
		return "", errors.New("json file path is required")
	}
	return strings.TrimRight(h.BaseURL, "/") + "/" + path, nil
}

func (h *Hook) fetcher() fetch.Fetcher {
	if h.Fetcher != nil {
		return h.Fetcher
	}
	var opts []fetch.Option
	if h.Client != nil {
		opts = append(opts, fetch.WithHTTPClient(h.Client))
	}
	return fetch.NewClient(append(opts, fetch.WithLogger(h.logger()))...)
}

func (h *Hook) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger.With(slog.String("component", "access"))
}

func translate(url string, err error) error {
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		return err
	}
	switch fe.Kind {
	case fetch.KindHTTPStatus:
		return &StatusError{URL: url, StatusCode: fe.StatusCode}
	case fetch.KindParse:
		return fmt.Errorf("%w: %s: %v", ErrInvalidJSON, url, fe.Err)
	default:
		return err
	}
}
