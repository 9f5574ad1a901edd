package inliner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cascadiacollections/apinline/internal/config"
	"github.com/cascadiacollections/apinline/internal/fetch"
	"github.com/cascadiacollections/apinline/internal/state"
)

const pluginName = "ApiInlinerPlugin"

// SuccessFunc is called with the data of every successful fetch.
type SuccessFunc func(data json.RawMessage, ep config.Endpoint)

// ErrorFunc is called with every fetch failure before a fallback is used.
type ErrorFunc func(err error, ep config.Endpoint)

// ReloadFunc returns a fresh configuration for the next watch pass.
type ReloadFunc func() (config.Config, error)

// Plugin fetches configured endpoints at build time and publishes the data
// as files, inline scripts and type declarations.
type Plugin struct {
	mu  sync.RWMutex
	cfg config.Config

	fetcher   fetch.Fetcher
	store     *state.Store
	logger    *slog.Logger
	onSuccess SuccessFunc
	onError   ErrorFunc
	reload    ReloadFunc
	now       func() time.Time
	outputDir string

	watchMode atomic.Bool
}

// Option customises a Plugin.
type Option func(*Plugin)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(p *Plugin) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithStore shares an existing store, e.g. with the dashboard.
func WithStore(s *state.Store) Option {
	return func(p *Plugin) {
		if s != nil {
			p.store = s
		}
	}
}

// WithLogger sets the plugin logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOnSuccess registers a callback for successful fetches.
func WithOnSuccess(fn SuccessFunc) Option {
	return func(p *Plugin) { p.onSuccess = fn }
}

// WithOnError registers a callback for failed fetches.
func WithOnError(fn ErrorFunc) Option {
	return func(p *Plugin) { p.onError = fn }
}

// WithReload makes every watch pass re-read the configuration. A failing
// reload keeps the previous configuration.
func WithReload(fn ReloadFunc) Option {
	return func(p *Plugin) { p.reload = fn }
}

// WithClock overrides the time source used for declaration headers.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) {
		if now != nil {
			p.now = now
		}
	}
}

// WithOutputDir sets the directory outputPath is relative to. Apply
// defaults it to the compiler's output directory.
func WithOutputDir(dir string) Option {
	return func(p *Plugin) { p.outputDir = dir }
}

// New validates cfg and builds a Plugin. Configuration problems are
// reported here, before any request is made.
func New(cfg config.Config, opts ...Option) (*Plugin, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Plugin{
		cfg:    cfg,
		store:  &state.Store{},
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "inliner"))
	if p.fetcher == nil {
		p.fetcher = fetch.NewClient(fetch.WithLogger(p.logger))
	}
	return p, nil
}

// Store returns the data store populated by processing passes.
func (p *Plugin) Store() *state.Store { return p.store }

// IsWatchMode reports whether the plugin has seen a watch-mode build.
func (p *Plugin) IsWatchMode() bool { return p.watchMode.Load() }

// Config returns the configuration in effect.
func (p *Plugin) Config() config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Plugin) output() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.outputDir
}

// runPass processes every endpoint once and records the pass outcome.
func (p *Plugin) runPass(ctx context.Context, watch bool) error {
	if watch && p.reload != nil {
		p.reloadConfig()
	}
	p.store.BeginPass(watch)
	err := p.ProcessAll(ctx)
	p.store.EndPass(err)
	return err
}

func (p *Plugin) reloadConfig() {
	cfg, err := p.reload()
	if err != nil {
		p.logger.Error("config reload failed, keeping previous configuration", slog.String("error", err.Error()))
		return
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	p.logger.Debug("config reloaded", slog.Int("endpoints", len(cfg.Endpoints)))
}

// safely runs fn and logs, rather than propagates, its error or panic.
func (p *Plugin) safely(what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(what+" panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := fn(); err != nil {
		p.logger.Error(what+" failed", slog.String("error", err.Error()))
	}
}
