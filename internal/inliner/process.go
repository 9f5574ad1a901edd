package inliner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cascadiacollections/apinline/internal/config"
	"github.com/cascadiacollections/apinline/internal/endpoint"
	"github.com/cascadiacollections/apinline/internal/fetch"
	"github.com/cascadiacollections/apinline/internal/publish"
	"github.com/cascadiacollections/apinline/internal/state"
)

var emptyObject = json.RawMessage(`{}`)

// ProcessAll processes every configured endpoint concurrently and waits for
// all of them to settle. Recovered fetch failures never fail the pass; file
// system errors do, joined across endpoints.
func (p *Plugin) ProcessAll(ctx context.Context) error {
	cfg := p.Config()

	urls := make([]string, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		urls = append(urls, ep.URL)
	}
	p.store.Retain(urls)
	p.store.Declare(urls)

	errs := make([]error, len(cfg.Endpoints))
	var wg sync.WaitGroup
	for i, ep := range cfg.Endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.processEndpoint(ctx, cfg, ep)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	return p.writeManifest(cfg)
}

// ProcessEndpoint fetches (or falls back for) one endpoint, stores the
// result and publishes its file. Only file system errors are returned.
func (p *Plugin) ProcessEndpoint(ctx context.Context, ep config.Endpoint) error {
	return p.processEndpoint(ctx, p.Config(), ep)
}

func (p *Plugin) processEndpoint(ctx context.Context, cfg config.Config, ep config.Endpoint) error {
	start := time.Now()
	d := endpoint.Resolve(cfg, ep, p.output())
	entry := state.Entry{Endpoint: ep, Decision: d}

	if d.ShouldFetchFromAPI {
		res, err := p.fetcher.Fetch(ctx, ep.URL, requestFor(d))
		entry.Attempts = res.Attempts
		if err == nil {
			entry.Data = res.Data
			entry.Source = state.SourceFetched
		} else {
			entry.Err = err
			entry.Data, entry.Source = p.fallback(ep, state.SourceFallback)
			if entry.Source == state.SourceFallback {
				p.callError(err, ep)
			}
			p.logger.Warn("fetch failed, using fallback",
				slog.String("url", ep.URL),
				slog.String("fallback", string(entry.Source)),
				slog.Int("attempts", res.Attempts),
				slog.String("error", err.Error()),
			)
		}
	} else {
		entry.Data, entry.Source = p.fallback(ep, state.SourceSkipped)
		if entry.Source == state.SourceEmpty {
			p.logger.Warn("fetching disabled and no fallbackData, using {}", slog.String("url", ep.URL))
		} else {
			p.logger.Debug("fetching disabled, using fallbackData", slog.String("url", ep.URL))
		}
	}

	if d.ShouldSaveAsFile && d.OutputPath != "" {
		entry.FilePath = d.OutputPath
	}
	entry.UpdatedAt = time.Now()
	entry.Duration = time.Since(start)
	p.store.Put(entry)

	if entry.FilePath != "" {
		if err := publish.WriteJSON(entry.FilePath, entry.Data); err != nil {
			p.logger.Error("failed to save endpoint data",
				slog.String("url", ep.URL),
				slog.String("path", entry.FilePath),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("save %s: %w", ep.URL, err)
		}
		p.logger.Debug("saved endpoint data", slog.String("url", ep.URL), slog.String("path", entry.FilePath))
	}

	// onSuccess only sees data that has been stored and published.
	if entry.Source == state.SourceFetched {
		p.callSuccess(entry.Data, ep)
	}
	return nil
}

// fallback returns the endpoint's fallbackData tagged with src, or {}.
func (p *Plugin) fallback(ep config.Endpoint, src state.Source) (json.RawMessage, state.Source) {
	data, ok, err := config.FallbackJSON(ep)
	if err != nil {
		p.logger.Warn("fallbackData is not JSON encodable, using {}", slog.String("url", ep.URL), slog.String("error", err.Error()))
		return emptyObject, state.SourceEmpty
	}
	if !ok {
		return emptyObject, state.SourceEmpty
	}
	return data, src
}

func (p *Plugin) writeManifest(cfg config.Config) error {
	path := endpoint.ManifestPath(cfg, p.output())
	if path == "" {
		return nil
	}
	var globals []publish.Global
	for _, e := range p.store.Entries() {
		if e.Decision.ShouldInlineAsVariable {
			globals = append(globals, publish.Global{Name: e.Decision.VariableName, Data: e.Data})
		}
	}
	if len(globals) == 0 {
		return nil
	}
	if err := publish.WriteManifest(path, globals); err != nil {
		return fmt.Errorf("save globals manifest: %w", err)
	}
	return nil
}

func (p *Plugin) callSuccess(data json.RawMessage, ep config.Endpoint) {
	if p.onSuccess == nil {
		return
	}
	p.safely("onSuccess callback", func() error {
		p.onSuccess(data, ep)
		return nil
	})
}

func (p *Plugin) callError(err error, ep config.Endpoint) {
	if p.onError == nil {
		return
	}
	p.safely("onError callback", func() error {
		p.onError(err, ep)
		return nil
	})
}

func requestFor(d endpoint.Decision) fetch.Request {
	return fetch.Request{
		Method:  d.Method,
		Headers: d.Headers,
		Body:    d.Body,
		Timeout: d.Timeout,
		Retries: d.RetryCount,
		Delay:   d.RetryDelay,
	}
}
