package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/cascadiacollections/apinline/internal/compiler"
	"github.com/cascadiacollections/apinline/internal/config"
	"github.com/cascadiacollections/apinline/internal/inliner"
	"github.com/cascadiacollections/apinline/internal/prefs"
	"github.com/cascadiacollections/apinline/internal/state"
	"github.com/cascadiacollections/apinline/internal/ui"
)

// logDir holds the build log while the dashboard owns the terminal.
const logDir = ".apinline"

// isTerminal reports whether stdout is an interactive terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run loads the inliner configuration and performs a single build, or
// watches until ctx is cancelled. Only configuration and filesystem
// failures are returned; endpoint failures fall back and are logged.
func Run(ctx context.Context, opts Options) error {
	return run(ctx, opts, os.Stderr)
}

func run(ctx context.Context, opts Options, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	dashboard := opts.Watch && !opts.NoDashboard && isTerminal()
	logPath := ""
	logOut := stderr
	if dashboard {
		logPath = filepath.Join(opts.OutputDir, logDir, "build.log")
		f, err := openLog(logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, opts.Verbose)

	store := &state.Store{}
	pluginOpts := []inliner.Option{
		inliner.WithStore(store),
		inliner.WithLogger(logger),
	}
	if opts.Watch {
		pluginOpts = append(pluginOpts, inliner.WithReload(func() (config.Config, error) {
			return loadConfig(opts)
		}))
	}
	plugin, err := inliner.New(cfg, pluginOpts...)
	if err != nil {
		return fmt.Errorf("init inliner: %w", err)
	}

	c, err := compiler.New(compiler.Options{
		SourceDir: opts.SourceDir,
		OutputDir: opts.OutputDir,
		HTML:      opts.HTML,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("init compiler: %w", err)
	}
	plugin.Apply(c)

	if !opts.Watch {
		return c.Run(ctx)
	}

	watchOpts := compiler.WatchOptions{Interval: opts.Poll, Paths: []string{opts.ConfigPath}}
	if !dashboard {
		return c.Watch(ctx, watchOpts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, watchOpts)
	}()

	uiErr := ui.Run(ctx, ui.Options{
		Store:     store,
		LogPath:   logPath,
		OutputDir: c.OutputDir(),
		PollTick:  opts.Poll,
		Prefs:     prefs.Load(opts.PrefsPath),
		PrefsPath: opts.PrefsPath,
	})
	cancel()
	return errors.Join(<-done, uiErr)
}

// loadConfig reads the inliner configuration and applies the production
// override.
func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.Production {
		production := true
		cfg.Production = &production
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open build log: %w", err)
	}
	return f, nil
}
