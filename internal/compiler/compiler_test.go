package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRun_HookOrderAndEmit(t *testing.T) {
	src := writeTree(t, map[string]string{
		"index.html":     "<html><head></head><body></body></html>",
		"js/app.js":      "console.log(1)",
		".git/HEAD":      "ref",
		"dist/stale.txt": "old",
	})
	out := filepath.Join(src, "dist")

	c, err := New(Options{SourceDir: src, OutputDir: out, HTML: true})
	require.NoError(t, err)

	var calls []string
	c.Hooks.BeforeRun.Tap("test", func(ctx context.Context, _ *Compiler) error {
		calls = append(calls, "beforeRun")
		return nil
	})
	c.Hooks.WatchRun.Tap("test", func(ctx context.Context, _ *Compiler) error {
		calls = append(calls, "watchRun")
		return nil
	})
	c.Hooks.ThisCompilation.Tap("test", func(comp *Compilation) {
		calls = append(calls, "compilation")
		require.NotNil(t, comp.HTML())
		comp.HTML().TapAlter("test", func(doc HTMLDoc) (HTMLDoc, error) {
			calls = append(calls, "alter:"+doc.Name)
			doc.HTML = bytes.Replace(doc.HTML, []byte("</head>"), []byte("<meta x></head>"), 1)
			return doc, nil
		})
	})
	c.Hooks.AfterEmit.Tap("test", func(ctx context.Context, comp *Compilation) error {
		calls = append(calls, "afterEmit")
		assert.Equal(t, []string{"index.html", "js/app.js"}, comp.AssetNames())
		return nil
	})

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"beforeRun", "compilation", "alter:index.html", "afterEmit"}, calls)

	html, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><head><meta x></head><body></body></html>", string(html))

	js, err := os.ReadFile(filepath.Join(out, "js", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(js))

	_, err = os.Stat(filepath.Join(out, "dist", "stale.txt"))
	assert.True(t, os.IsNotExist(err), "output directory must not be copied into itself")
}

func TestRun_HTMLDisabled(t *testing.T) {
	src := writeTree(t, map[string]string{"index.html": "<html></html>"})
	c, err := New(Options{SourceDir: src, OutputDir: t.TempDir()})
	require.NoError(t, err)

	var sawHTML bool
	c.Hooks.ThisCompilation.Tap("test", func(comp *Compilation) {
		sawHTML = comp.HTML() != nil
	})
	require.NoError(t, c.Run(context.Background()))
	assert.False(t, sawHTML)
}

func TestRun_AlterErrorKeepsDocument(t *testing.T) {
	src := writeTree(t, map[string]string{"index.html": "<html></html>"})
	out := t.TempDir()
	c, err := New(Options{SourceDir: src, OutputDir: out, HTML: true})
	require.NoError(t, err)

	c.Hooks.ThisCompilation.Tap("test", func(comp *Compilation) {
		comp.HTML().TapAlter("broken", func(doc HTMLDoc) (HTMLDoc, error) {
			return HTMLDoc{}, errors.New("boom")
		})
	})
	require.NoError(t, c.Run(context.Background()))

	html, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(html))
}

func TestRun_BeforeRunErrorAbortsBuild(t *testing.T) {
	src := writeTree(t, map[string]string{"a.txt": "a"})
	out := t.TempDir()

	var events []BuildEvent
	c, err := New(Options{SourceDir: src, OutputDir: out, OnBuild: func(ev BuildEvent) { events = append(events, ev) }})
	require.NoError(t, err)

	boom := errors.New("disk full")
	c.Hooks.BeforeRun.Tap("inliner", func(context.Context, *Compiler) error { return boom })
	emitted := false
	c.Hooks.AfterEmit.Tap("test", func(context.Context, *Compilation) error {
		emitted = true
		return nil
	})

	err = c.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "inliner")
	assert.False(t, emitted)
	_, statErr := os.Stat(filepath.Join(out, "a.txt"))
	assert.True(t, os.IsNotExist(statErr))
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, boom)
}

func TestRun_AfterEmitError(t *testing.T) {
	src := writeTree(t, map[string]string{"a.txt": "a"})
	c, err := New(Options{SourceDir: src, OutputDir: t.TempDir()})
	require.NoError(t, err)

	boom := errors.New("boom")
	c.Hooks.AfterEmit.Tap("test", func(context.Context, *Compilation) error { return boom })
	assert.ErrorIs(t, c.Run(context.Background()), boom)
}

func TestNew_RequiresDirectories(t *testing.T) {
	_, err := New(Options{OutputDir: "out"})
	assert.Error(t, err)
	_, err = New(Options{SourceDir: "src"})
	assert.Error(t, err)
}

func TestWatch_RebuildsOnChangeUntilCancelled(t *testing.T) {
	src := writeTree(t, map[string]string{"a.txt": "a"})
	out := t.TempDir()

	var mu sync.Mutex
	var events []BuildEvent
	c, err := New(Options{SourceDir: src, OutputDir: out, OnBuild: func(ev BuildEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}})
	require.NoError(t, err)

	var watchRuns, beforeRuns atomic.Int32
	c.Hooks.WatchRun.Tap("test", func(context.Context, *Compiler) error {
		watchRuns.Add(1)
		return nil
	})
	c.Hooks.BeforeRun.Tap("test", func(context.Context, *Compiler) error {
		beforeRuns.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, WatchOptions{Interval: 10 * time.Millisecond}) }()

	require.Eventually(t, func() bool { return watchRuns.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("changed"), 0o644))
	require.Eventually(t, func() bool { return watchRuns.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	assert.Equal(t, int32(0), beforeRuns.Load())
	data, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "changed", string(data))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.True(t, events[0].Watch)
}

func TestWatch_RetriesFailedBuilds(t *testing.T) {
	src := writeTree(t, map[string]string{"a.txt": "a"})
	c, err := New(Options{SourceDir: src, OutputDir: t.TempDir()})
	require.NoError(t, err)

	var runs atomic.Int32
	c.Hooks.WatchRun.Tap("flaky", func(context.Context, *Compiler) error {
		if runs.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Watch(ctx, WatchOptions{Interval: 5 * time.Millisecond}) }()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}
