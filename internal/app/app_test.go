package app

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiacollections/apinline/internal/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadOptions_Defaults(t *testing.T) {
	opts, err := LoadOptions(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, Options{
		ConfigPath: "apinline.toml",
		SourceDir:  "src",
		OutputDir:  "dist",
		HTML:       true,
		Poll:       time.Second,
	}, opts)
}

func TestLoadOptions_EnvironmentAndFlags(t *testing.T) {
	t.Setenv("APINLINE_PRODUCTION", "true")
	t.Setenv("APINLINE_OUT", "build")
	t.Setenv("APINLINE_NO_DASHBOARD", "true")
	t.Setenv("APINLINE_POLL", "250ms")

	opts, err := LoadOptions(newFlags(t))
	require.NoError(t, err)
	assert.True(t, opts.Production)
	assert.True(t, opts.NoDashboard)
	assert.Equal(t, "build", opts.OutputDir)
	assert.Equal(t, 250*time.Millisecond, opts.Poll)

	opts, err = LoadOptions(newFlags(t, "-o", "site", "--watch", "--html=false", "-c", "inliner.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "site", opts.OutputDir)
	assert.Equal(t, "inliner.yaml", opts.ConfigPath)
	assert.True(t, opts.Watch)
	assert.False(t, opts.HTML)
}

func TestLoadOptions_RejectsEmptyConfigPath(t *testing.T) {
	_, err := LoadOptions(newFlags(t, "--config", " "))
	require.Error(t, err)
}

// project writes a source tree and an inliner config pointing at srv.
func project(t *testing.T, srv *httptest.Server) Options {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"),
		[]byte("<html><head></head><body></body></html>"), 0o644))

	cfg := `retryCount = 0
requestTimeout = "2s"

[[endpoints]]
url = "` + srv.URL + `/top-podcasts"
outputFile = "top.json"

[[endpoints]]
url = "` + srv.URL + `/broken"
outputFile = "broken.json"
fallbackData = { feed = [] }
`
	cfgPath := filepath.Join(root, "apinline.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	return Options{
		ConfigPath:  cfgPath,
		SourceDir:   src,
		OutputDir:   filepath.Join(root, "dist"),
		HTML:        true,
		Poll:        20 * time.Millisecond,
		NoDashboard: true,
	}
}

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/top-podcasts", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"feed":[1]}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_SingleBuild(t *testing.T) {
	opts := project(t, apiServer(t))
	var logs bytes.Buffer

	require.NoError(t, run(context.Background(), opts, &logs))

	html := readFile(t, filepath.Join(opts.OutputDir, "index.html"))
	assert.Contains(t, html, `window.API_DATA_TOP_PODCASTS = {"feed":[1]};`)
	assert.Contains(t, html, `window.API_DATA_BROKEN = {"feed":[]};`)
	assert.JSONEq(t, `{"feed":[1]}`, readFile(t, filepath.Join(opts.OutputDir, "api-data", "top.json")))
	assert.JSONEq(t, `{"feed":[]}`, readFile(t, filepath.Join(opts.OutputDir, "api-data", "broken.json")))
	assert.FileExists(t, filepath.Join(opts.OutputDir, "api-inliner.d.ts"))
	assert.FileExists(t, filepath.Join(opts.OutputDir, "api-data", "globals.json"))

	assert.Contains(t, logs.String(), "fetch failed, using fallback")
	assert.Contains(t, logs.String(), "build finished")
}

func TestRun_ConfigErrors(t *testing.T) {
	opts := project(t, apiServer(t))

	missing := opts
	missing.ConfigPath = filepath.Join(t.TempDir(), "nope.toml")
	err := run(context.Background(), missing, &bytes.Buffer{})
	require.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, os.WriteFile(opts.ConfigPath, []byte("endpoints = []\n"), 0o644))
	err = run(context.Background(), opts, &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.NoDirExists(t, opts.OutputDir)
}

func TestLoadConfig_ProductionOverride(t *testing.T) {
	opts := project(t, apiServer(t))

	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.Nil(t, cfg.Production)

	opts.Production = true
	cfg, err = loadConfig(opts)
	require.NoError(t, err)
	require.NotNil(t, cfg.Production)
	assert.True(t, *cfg.Production)
}

func TestRun_WatchStopsOnCancel(t *testing.T) {
	opts := project(t, apiServer(t))
	opts.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts, &bytes.Buffer{}) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(opts.OutputDir, "api-data", "top.json"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api-data/shows.json" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Preview"))
		_, _ = w.Write([]byte(`{"shows":["a"]}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	err := Access(context.Background(), AccessOptions{
		Variable: "API_DATA_SHOWS",
		File:     "api-data/shows.json",
		BaseURL:  srv.URL,
		Headers:  []string{"X-Preview: yes"},
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"shows\": [\n    \"a\"\n  ]\n}\n", out.String())

	manifest := filepath.Join(t.TempDir(), "globals.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"API_DATA_SHOWS":[1,2]}`), 0o644))
	out.Reset()
	err = Access(context.Background(), AccessOptions{
		Variable: "API_DATA_SHOWS",
		File:     "missing.json",
		BaseURL:  srv.URL,
		Manifest: manifest,
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "[\n  1,\n  2\n]\n", out.String())

	err = Access(context.Background(), AccessOptions{
		Variable: "API_DATA_NONE",
		File:     "missing.json",
		BaseURL:  srv.URL,
	}, &out, &bytes.Buffer{})
	require.Error(t, err)

	err = Access(context.Background(), AccessOptions{Variable: "X", File: "x.json", Headers: []string{"bad"}}, &out, &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid header")
}
