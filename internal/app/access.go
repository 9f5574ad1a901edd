package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cascadiacollections/apinline/internal/access"
)

// AccessOptions configure a command-line lookup through the runtime hook.
type AccessOptions struct {
	Variable string
	File     string
	BaseURL  string
	// Manifest is a globals manifest written by a build; it stands in for
	// the page globals.
	Manifest string
	Method   string
	Headers  []string
	Verbose  bool
}

// Access resolves one variable the way a page would and writes the data
// as indented JSON to w.
func Access(ctx context.Context, opts AccessOptions, w, stderr io.Writer) error {
	hook := &access.Hook{
		BaseURL: opts.BaseURL,
		Logger:  newLogger(stderr, opts.Verbose),
	}
	if opts.Manifest != "" {
		globals, err := access.LoadManifest(opts.Manifest)
		if err != nil {
			return err
		}
		hook.Globals = globals
	}

	var fetchOpts []access.FetchOption
	if opts.Method != "" {
		fetchOpts = append(fetchOpts, access.WithMethod(opts.Method))
	}
	for _, h := range opts.Headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, want key:value", h)
		}
		fetchOpts = append(fetchOpts, access.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value)))
	}

	st := hook.Resolve(ctx, opts.Variable, opts.File, fetchOpts...)
	if st.Err != nil {
		return fmt.Errorf("resolve %s: %w", opts.Variable, st.Err)
	}
	hook.Logger.Debug("resolved", slog.String("variable", opts.Variable), slog.Int("bytes", len(st.Data)))

	var out bytes.Buffer
	if err := json.Indent(&out, st.Data, "", "  "); err != nil {
		return fmt.Errorf("format data: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}
