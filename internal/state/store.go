package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cascadiacollections/apinline/internal/config"
	"github.com/cascadiacollections/apinline/internal/endpoint"
)

// Source records where an entry's data came from.
type Source string

const (
	SourceFetched  Source = "fetched"
	SourceFallback Source = "fallback"
	SourceEmpty    Source = "empty"
	SourceSkipped  Source = "skipped"
)

// Phase is the state of the current processing pass.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching"
	PhaseReady    Phase = "ready"
)

// Entry is the stored result for one endpoint URL.
type Entry struct {
	Endpoint config.Endpoint
	Decision endpoint.Decision
	Data     json.RawMessage
	Source   Source
	// Err is the recovered fetch failure, if any.
	Err       error
	Attempts  int
	UpdatedAt time.Time
	Duration  time.Duration
	// FilePath is the published JSON file, empty when not written.
	FilePath string
}

// Snapshot is a point-in-time copy of the store for rendering.
type Snapshot struct {
	Entries             []Entry
	Pass                int
	Phase               Phase
	WatchMode           bool
	LastPassAt          time.Time
	LastPassDuration    time.Duration
	LastError           error
	ConsecutiveFailures int
}

// Degraded counts entries that are not backed by a live fetch.
func (s Snapshot) Degraded() int {
	n := 0
	for _, e := range s.Entries {
		if e.Source != SourceFetched && e.Source != SourceSkipped {
			n++
		}
	}
	return n
}

// IsFailing returns true when consecutive passes have ended in error.
func (s Snapshot) IsFailing() bool {
	return s.ConsecutiveFailures >= 2
}

// Store holds fetched data keyed by endpoint URL. Iteration follows the
// declared endpoint order regardless of the order in which concurrent
// writers finish. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]Entry

	pass                int
	phase               Phase
	watch               bool
	passStarted         time.Time
	lastPassAt          time.Time
	lastPassDuration    time.Duration
	lastError           error
	consecutiveFailures int
}

// Declare fixes the iteration order. URLs already stored but absent from
// urls keep their relative order after the declared ones.
func (s *Store) Declare(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]string, 0, len(urls)+len(s.order))
	for _, u := range urls {
		if !slices.Contains(order, u) {
			order = append(order, u)
		}
	}
	for _, u := range s.order {
		if !slices.Contains(order, u) {
			order = append(order, u)
		}
	}
	s.order = order
}

// Retain drops every entry whose URL is not in urls.
func (s *Store) Retain(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for url := range s.entries {
		if !slices.Contains(urls, url) {
			delete(s.entries, url)
		}
	}
	s.order = slices.DeleteFunc(s.order, func(url string) bool {
		return !slices.Contains(urls, url)
	})
}

// Put replaces the entry for e.Endpoint.URL wholesale.
func (s *Store) Put(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	url := e.Endpoint.URL
	if !slices.Contains(s.order, url) {
		s.order = append(s.order, url)
	}
	e.Data = cloneBytes(e.Data)
	s.entries[url] = e
}

// Get returns the entry stored for url.
func (s *Store) Get(url string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[url]
	if !ok {
		return Entry{}, false
	}
	return cloneEntry(e), true
}

// Entries returns copies of all stored entries in iteration order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// BeginPass marks the start of a processing pass and returns its number.
func (s *Store) BeginPass(watch bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pass++
	s.phase = PhaseFetching
	s.watch = watch
	s.passStarted = time.Now()
	return s.pass
}

// EndPass records the outcome of the current pass. When err is non-nil the
// stored entries are kept but the error is recorded for visibility.
func (s *Store) EndPass(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.phase = PhaseReady
	s.lastPassAt = now
	if !s.passStarted.IsZero() {
		s.lastPassDuration = now.Sub(s.passStarted)
	}
	if err != nil {
		s.lastError = err
		s.consecutiveFailures++
		return
	}
	s.lastError = nil
	s.consecutiveFailures = 0
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Entries:             s.entriesLocked(),
		Pass:                s.pass,
		Phase:               s.phase,
		WatchMode:           s.watch,
		LastPassAt:          s.lastPassAt,
		LastPassDuration:    s.lastPassDuration,
		ConsecutiveFailures: s.consecutiveFailures,
	}
	if snap.Phase == "" {
		snap.Phase = PhaseIdle
	}
	if s.lastError != nil {
		snap.LastError = fmt.Errorf("%w", s.lastError)
	}
	return snap
}

func (s *Store) entriesLocked() []Entry {
	if len(s.entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(s.entries))
	for _, url := range s.order {
		if e, ok := s.entries[url]; ok {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

func cloneEntry(e Entry) Entry {
	e.Data = cloneBytes(e.Data)
	if e.Decision.Headers != nil {
		headers := make(map[string]string, len(e.Decision.Headers))
		for k, v := range e.Decision.Headers {
			headers[k] = v
		}
		e.Decision.Headers = headers
	}
	return e
}

func cloneBytes(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	dup := make(json.RawMessage, len(b))
	copy(dup, b)
	return dup
}
