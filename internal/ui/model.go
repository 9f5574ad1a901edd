package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cascadiacollections/apinline/internal/logtail"
	"github.com/cascadiacollections/apinline/internal/prefs"
	"github.com/cascadiacollections/apinline/internal/state"
)

const (
	defaultPollTick = time.Second
	logTailLines    = 500
)

// Options configures the dashboard.
type Options struct {
	Store *state.Store
	// LogPath is the build log shown in the log pane.
	LogPath   string
	OutputDir string
	PollTick  time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
}

// Model is the root dashboard state for Bubble Tea.
type Model struct {
	store     *state.Store
	logPath   string
	outputDir string
	prefsPath string
	pollTick  time.Duration
	keys      keyMap
	now       func() time.Time

	theme    Theme
	showLogs bool
	width    int
	height   int
	ready    bool

	snapshot    state.Snapshot
	lastUpdated time.Time
	selectedRow int

	logLines    []logtail.Line
	logErr      error
	logViewport viewport.Model
}

// New creates the dashboard model.
func New(opts Options) Model {
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = defaultPollTick
	}
	return Model{
		store:     opts.Store,
		logPath:   opts.LogPath,
		outputDir: opts.OutputDir,
		prefsPath: opts.PrefsPath,
		pollTick:  pollTick,
		keys:      DefaultKeyMap(),
		now:       time.Now,
		theme:     GetTheme(opts.Prefs.Theme),
		showLogs:  !opts.Prefs.HideLogs,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.logPath != "" {
		cmds = append(cmds, readLogCmd(m.logPath))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layoutLogViewport()
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		if m.showLogs && m.logPath != "" {
			cmds = append(cmds, readLogCmd(m.logPath))
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = m.now()
		m.clampSelection()
		m.layoutLogViewport()
		return m, nil

	case logLinesMsg:
		m.logLines = msg
		m.logErr = nil
		m.refreshLogViewport()
		return m, nil

	case logErrorMsg:
		m.logErr = msg.err
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderTable())
	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.renderLogs())
	}
	return b.String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.refreshLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		m.savePrefs()
		m.layoutLogViewport()
		if m.showLogs && m.logPath != "" {
			return m, readLogCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < len(m.snapshot.Entries)-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = max(len(m.snapshot.Entries)-1, 0)
	}
	return m, nil
}

func (m *Model) clampSelection() {
	if n := len(m.snapshot.Entries); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, HideLogs: !m.showLogs})
}

// selectedEntry returns the highlighted entry, if any.
func (m Model) selectedEntry() (state.Entry, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snapshot.Entries) {
		return state.Entry{}, false
	}
	return m.snapshot.Entries[m.selectedRow], true
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type logLinesMsg []logtail.Line

type logErrorMsg struct{ err error }

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func readLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		raw, err := logtail.Read(path, logTailLines)
		if err != nil {
			return logErrorMsg{err: err}
		}
		lines := make([]logtail.Line, 0, len(raw))
		for _, l := range raw {
			lines = append(lines, logtail.Parse(l))
		}
		return logLinesMsg(lines)
	}
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
