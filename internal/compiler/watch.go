package compiler

import (
	"context"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cascadiacollections/apinline/internal/backoff"
)

const defaultPollInterval = time.Second

// WatchOptions configure Watch.
type WatchOptions struct {
	// Interval between change checks; zero uses one second.
	Interval time.Duration
	// Paths are extra files whose changes trigger a rebuild, such as the
	// inliner configuration.
	Paths []string
}

// Watch builds once through WatchRun, then polls the source tree and the
// extra paths and rebuilds whenever they change. Failed builds are retried
// with exponential backoff even without further changes. Watch returns nil
// when ctx is cancelled.
func (c *Compiler) Watch(ctx context.Context, opts WatchOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	last := c.fingerprint(opts.Paths)
	failures := 0
	if err := c.rebuild(ctx); err != nil {
		failures++
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		current := c.fingerprint(opts.Paths)
		if current != last || failures > 0 {
			if current != last {
				c.logger.Info("change detected, rebuilding")
			}
			last = current
			if err := c.rebuild(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				failures++
			} else {
				failures = 0
			}
		}

		wait := interval
		if failures > 0 {
			wait = backoff.Delay(failures, interval)
			c.logger.Debug("rebuild backoff", slog.Int("failures", failures), slog.Duration("wait", wait))
		}
		timer.Reset(wait)
	}
}

// fingerprint hashes path, size and modification time of every watched
// file.
func (c *Compiler) fingerprint(extra []string) uint64 {
	h := fnv.New64a()
	add := func(path string, info fs.FileInfo) {
		_, _ = h.Write([]byte(path))
		_, _ = h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
		_, _ = h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	}
	_ = c.walkSource(func(path, _ string, info fs.FileInfo) error {
		add(path, info)
		return nil
	})
	for _, p := range extra {
		if info, err := os.Stat(p); err == nil {
			add(p, info)
		}
	}
	return h.Sum64()
}
