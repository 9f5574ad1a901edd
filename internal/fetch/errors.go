package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTPStatus indicates the server answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrNetwork indicates the request never produced a response: DNS,
	// connection, TLS or per-attempt timeout failures.
	ErrNetwork = errors.New("network failure")

	// ErrParse indicates a 2xx response whose body is not valid JSON.
	ErrParse = errors.New("invalid json response")
)

// Kind classifies a fetch failure.
type Kind int

const (
	KindHTTPStatus Kind = iota + 1
	KindNetwork
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http-status"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is returned by Client.Fetch once retries are exhausted or the
// failure is not retryable.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Attempts   int
	Timeout    bool
	Err        error

	permanent bool
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	case KindNetwork:
		if e.Timeout {
			return fmt.Sprintf("fetch %s: timed out after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
		}
		return fmt.Sprintf("fetch %s: %v (after %d attempt(s))", e.URL, e.Err, e.Attempts)
	case KindParse:
		return fmt.Sprintf("fetch %s: decode response: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}
