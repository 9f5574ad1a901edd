package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cascadiacollections/apinline/internal/publish"
)

// Options configure a Compiler.
type Options struct {
	SourceDir string
	OutputDir string
	// HTML enables the HTML stage; without it Compilation.HTML is nil.
	HTML    bool
	Logger  *slog.Logger
	OnBuild func(BuildEvent)
}

// BuildEvent describes a finished build.
type BuildEvent struct {
	Pass     int
	Watch    bool
	Assets   int
	Duration time.Duration
	Err      error
}

// Compilation is one build's set of assets.
type Compilation struct {
	// Assets maps slash-separated paths relative to the output directory to
	// their content.
	Assets map[string][]byte
	Watch  bool
	html   *HTMLHooks
}

// HTML returns the HTML stage hooks, or nil when HTML processing is off.
func (c *Compilation) HTML() *HTMLHooks {
	return c.html
}

// AssetNames returns the asset paths in lexical order.
func (c *Compilation) AssetNames() []string {
	names := make([]string, 0, len(c.Assets))
	for name := range c.Assets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compiler copies a source tree into the output directory and runs plugin
// hooks around each build.
type Compiler struct {
	Hooks Hooks

	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	pass int
}

// New validates opts and builds a Compiler.
func New(opts Options) (*Compiler, error) {
	if strings.TrimSpace(opts.SourceDir) == "" {
		return nil, errors.New("source directory is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	src, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir: %w", err)
	}
	out, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	opts.SourceDir, opts.OutputDir = src, out

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{opts: opts, logger: logger.With(slog.String("component", "compiler"))}, nil
}

// OutputDir returns the absolute output directory.
func (c *Compiler) OutputDir() string { return c.opts.OutputDir }

// SourceDir returns the absolute source directory.
func (c *Compiler) SourceDir() string { return c.opts.SourceDir }

// Run performs a single build: BeforeRun, compilation, emit, AfterEmit.
func (c *Compiler) Run(ctx context.Context) error {
	start := time.Now()
	if err := c.Hooks.BeforeRun.call(ctx, c); err != nil {
		err = fmt.Errorf("before run: %w", err)
		c.report(BuildEvent{Pass: c.nextPass(), Duration: time.Since(start), Err: err})
		return err
	}
	return c.build(ctx, false, start)
}

func (c *Compiler) rebuild(ctx context.Context) error {
	start := time.Now()
	if err := c.Hooks.WatchRun.call(ctx, c); err != nil {
		err = fmt.Errorf("watch run: %w", err)
		c.report(BuildEvent{Pass: c.nextPass(), Watch: true, Duration: time.Since(start), Err: err})
		return err
	}
	return c.build(ctx, true, start)
}

func (c *Compiler) build(ctx context.Context, watch bool, start time.Time) error {
	pass := c.nextPass()
	comp, err := c.collect(watch)
	if err == nil {
		c.Hooks.ThisCompilation.call(comp)
		c.alterHTML(comp)
		err = c.emit(ctx, comp)
	}
	if err == nil {
		if aerr := c.Hooks.AfterEmit.call(ctx, comp); aerr != nil {
			err = fmt.Errorf("after emit: %w", aerr)
		}
	}

	ev := BuildEvent{Pass: pass, Watch: watch, Duration: time.Since(start), Err: err}
	if comp != nil {
		ev.Assets = len(comp.Assets)
	}
	c.report(ev)
	return err
}

func (c *Compiler) collect(watch bool) (*Compilation, error) {
	comp := &Compilation{Assets: make(map[string][]byte), Watch: watch}
	if c.opts.HTML {
		comp.html = &HTMLHooks{}
	}
	err := c.walkSource(func(path, rel string, _ fs.FileInfo) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", rel, err)
		}
		comp.Assets[rel] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

func (c *Compiler) alterHTML(comp *Compilation) {
	if comp.html == nil || len(comp.html.alter) == 0 {
		return
	}
	for _, name := range comp.AssetNames() {
		if !isHTML(name) {
			continue
		}
		doc := HTMLDoc{Name: name, HTML: comp.Assets[name]}
		for _, t := range comp.html.alter {
			next, err := t.fn(doc)
			if err != nil {
				c.logger.Warn("html alter failed",
					slog.String("tap", t.name),
					slog.String("asset", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			doc = next
		}
		comp.Assets[name] = doc.HTML
	}
}

func (c *Compiler) emit(ctx context.Context, comp *Compilation) error {
	for _, name := range comp.AssetNames() {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(c.opts.OutputDir, filepath.FromSlash(name))
		if err := publish.WriteFile(dest, comp.Assets[name]); err != nil {
			return fmt.Errorf("emit %s: %w", name, err)
		}
	}
	return nil
}

// walkSource visits every regular file of the source tree, skipping hidden
// entries and the output directory when it lives inside the source tree.
func (c *Compiler) walkSource(fn func(path, rel string, info fs.FileInfo) error) error {
	return filepath.WalkDir(c.opts.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == c.opts.SourceDir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || path == c.opts.OutputDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.opts.SourceDir, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
}

func (c *Compiler) nextPass() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pass++
	return c.pass
}

func (c *Compiler) report(ev BuildEvent) {
	if ev.Err != nil {
		c.logger.Error("build failed", slog.Int("pass", ev.Pass), slog.String("error", ev.Err.Error()))
	} else {
		c.logger.Info("build finished",
			slog.Int("pass", ev.Pass),
			slog.Bool("watch", ev.Watch),
			slog.Int("assets", ev.Assets),
			slog.Duration("duration", ev.Duration),
		)
	}
	if c.opts.OnBuild != nil {
		c.opts.OnBuild(ev)
	}
}

func isHTML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
