package ui

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadiacollections/apinline/internal/config"
	"github.com/cascadiacollections/apinline/internal/endpoint"
	"github.com/cascadiacollections/apinline/internal/logtail"
	"github.com/cascadiacollections/apinline/internal/prefs"
	"github.com/cascadiacollections/apinline/internal/state"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func entry(url, name string, src state.Source) state.Entry {
	return state.Entry{
		Endpoint: config.Endpoint{URL: url},
		Decision: endpoint.Decision{URL: url, VariableName: name, ShouldInlineAsVariable: true},
		Data:     json.RawMessage(`{"ok":true}`),
		Source:   src,
		Attempts: 1,
	}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func sampleSnapshot() state.Snapshot {
	return state.Snapshot{
		Pass:      3,
		Phase:     state.PhaseReady,
		WatchMode: true,
		Entries: []state.Entry{
			entry("https://api.test/shows", "API_DATA_SHOWS", state.SourceFetched),
			entry("https://api.test/episodes", "API_DATA_EPISODES", state.SourceFallback),
			entry("https://api.test/charts", "API_DATA_CHARTS", state.SourceEmpty),
		},
	}
}

func TestView_LoadingUntilSized(t *testing.T) {
	m := New(Options{})
	assert.Equal(t, "Loading...", m.View())
}

func TestView_RendersSnapshot(t *testing.T) {
	m := update(t, New(Options{OutputDir: "/srv/site/dist"}),
		tea.WindowSizeMsg{Width: 140, Height: 30},
		snapshotMsg(sampleSnapshot()),
	)

	view := m.View()
	for _, want := range []string{"apinline", "READY", "watch", "Degraded: 2", "API_DATA_SHOWS", "API_DATA_EPISODES", "fallback", "https://api.test/charts", "Build log"} {
		assert.Contains(t, view, want)
	}
}

func TestUpdate_SelectionStaysInBounds(t *testing.T) {
	m := update(t, New(Options{}), tea.WindowSizeMsg{Width: 120, Height: 30}, snapshotMsg(sampleSnapshot()))

	m = update(t, m, runes("j"), runes("j"), runes("j"), runes("j"))
	assert.Equal(t, 2, m.selectedRow)

	m = update(t, m, runes("k"))
	assert.Equal(t, 1, m.selectedRow)

	m = update(t, m, runes("g"))
	assert.Equal(t, 0, m.selectedRow)
	m = update(t, m, runes("k"))
	assert.Equal(t, 0, m.selectedRow)

	m = update(t, m, runes("G"))
	assert.Equal(t, 2, m.selectedRow)

	snap := sampleSnapshot()
	snap.Entries = snap.Entries[:1]
	m = update(t, m, snapshotMsg(snap))
	assert.Equal(t, 0, m.selectedRow)
}

func TestUpdate_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := New(Options{}).Update(msg)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestUpdate_ThemeAndLogTogglePersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	m := update(t, New(Options{PrefsPath: path, Prefs: prefs.Default()}), tea.WindowSizeMsg{Width: 100, Height: 30})
	require.Equal(t, "Nightfox", m.theme.Name)
	require.True(t, m.showLogs)

	m = update(t, m, runes("T"))
	assert.Equal(t, "Kanagawa", m.theme.Name)
	assert.Equal(t, "Kanagawa", prefs.Load(path).Theme)

	m = update(t, m, runes("l"))
	assert.False(t, m.showLogs)
	assert.True(t, prefs.Load(path).HideLogs)
	assert.NotContains(t, m.View(), "Build log")
}

func TestUpdate_HeaderShowsFailingPasses(t *testing.T) {
	snap := sampleSnapshot()
	snap.LastError = errors.New("save https://api.test/shows: write failed")
	snap.ConsecutiveFailures = 2
	m := update(t, New(Options{}), tea.WindowSizeMsg{Width: 200, Height: 30}, snapshotMsg(snap))

	assert.Contains(t, m.View(), "Failing x2")
}

func TestReadLogCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	content := "time=2026-10-19T12:00:00.000Z level=INFO msg=\"build finished\" component=compiler pass=1\n" +
		"time=2026-10-19T12:00:01.000Z level=WARN msg=\"fetch failed, using fallback\" url=https://api.test/shows\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	msg := readLogCmd(path)()
	lines, ok := msg.(logLinesMsg)
	require.True(t, ok, "got %T", msg)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[1].Level)

	m := update(t, New(Options{LogPath: path}), tea.WindowSizeMsg{Width: 160, Height: 30}, msg)
	assert.Contains(t, m.View(), "fetch failed, using fallback")
	assert.Contains(t, m.View(), "[compiler]")
}

func TestRenderLogLine_PlainText(t *testing.T) {
	styles := GetTheme("Slate").Styles()
	got := renderLogLine(logtail.Parse("panic: boom"), styles)
	assert.Contains(t, got, "panic: boom")
}

func TestHumanize(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "-", humanizeAge(now, time.Time{}))
	assert.Equal(t, "now", humanizeAge(now, now))
	assert.Equal(t, "42s", humanizeAge(now, now.Add(-42*time.Second)))
	assert.Equal(t, "5m", humanizeAge(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "2h", humanizeAge(now, now.Add(-2*time.Hour)))

	assert.Equal(t, "512B", humanizeBytes(512))
	assert.Equal(t, "1.5K", humanizeBytes(1536))
	assert.Equal(t, "2.0M", humanizeBytes(2*1024*1024))
}
