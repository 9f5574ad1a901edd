package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/cascadiacollections/apinline/internal/logtail"
	"github.com/cascadiacollections/apinline/internal/state"
)

// Column widths of the endpoint table.
const (
	colVariable = 28
	colSource   = 10
	colAttempts = 4
	colSize     = 8
	colAge      = 6
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	snap := m.snapshot

	parts := []string{bg.Render("apinline", styles.Logo)}

	phase := string(snap.Phase)
	if phase == "" {
		phase = string(state.PhaseIdle)
	}
	phaseStyle := styles.MutedText
	switch snap.Phase {
	case state.PhaseFetching:
		phaseStyle = styles.InfoText
	case state.PhaseReady:
		phaseStyle = styles.SuccessText
	}
	parts = append(parts, bg.Render("● "+strings.ToUpper(phase), phaseStyle))

	mode := "build"
	if snap.WatchMode {
		mode = "watch"
	}
	parts = append(parts,
		bg.Render("Pass:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", snap.Pass), styles.Text),
		bg.Render("Mode:", styles.MutedText)+bg.Space()+bg.Render(mode, styles.Text),
		bg.Render("Endpoints:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", len(snap.Entries)), styles.Text),
	)
	if n := snap.Degraded(); n > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("Degraded: %d", n), styles.WarningText))
	}
	if !snap.LastPassAt.IsZero() {
		parts = append(parts, bg.Render(
			fmt.Sprintf("Last: %s (%s)", snap.LastPassAt.Format("15:04:05"), snap.LastPassDuration.Round(time.Millisecond)),
			styles.FaintText))
	}
	if snap.LastError != nil {
		label := "Error"
		if snap.IsFailing() {
			label = fmt.Sprintf("Failing x%d", snap.ConsecutiveFailures)
		}
		parts = append(parts, bg.Render(label+": "+truncate(snap.LastError.Error(), 60), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderCommandBar lists the key bindings.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var parts []string
	for _, b := range m.keys.commandBar() {
		h := b.Help()
		parts = append(parts, bg.Render("<"+h.Key+">", styles.AccentText)+bg.Space()+bg.Render(h.Desc, styles.MutedText))
	}
	if m.outputDir != "" {
		parts = append(parts, bg.Render(truncateMiddle(m.outputDir, 40), styles.FaintText))
	}
	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// tableHeight is the number of rows the endpoint table shows, header
// included.
func (m Model) tableHeight() int {
	rows := len(m.snapshot.Entries) + 1
	if !m.showLogs {
		return max(rows, 2)
	}
	limit := max((m.height-2)/2-2, 2)
	return min(max(rows, 2), limit)
}

// renderTable renders the endpoint table inside a box.
func (m Model) renderTable() string {
	styles := m.theme.Styles()
	width := max(m.width-2, 20)
	urlWidth := max(width-colVariable-colSource-colAttempts-colSize-colAge-6, 10)

	row := func(cells ...string) string {
		widths := []int{colVariable, colSource, colAttempts, colSize, colAge, urlWidth}
		out := make([]string, len(cells))
		for i, c := range cells {
			out[i] = padRight(truncate(c, widths[i]), widths[i])
		}
		return strings.Join(out, " ")
	}

	lines := []string{styles.MutedText.Render(row("VARIABLE", "SOURCE", "TRY", "SIZE", "AGE", "URL"))}
	if len(m.snapshot.Entries) == 0 {
		lines = append(lines, styles.FaintText.Render("No endpoints processed yet"))
	}

	visible := m.tableHeight() - 1
	start := 0
	if m.selectedRow >= visible {
		start = m.selectedRow - visible + 1
	}
	now := m.now()
	for i := start; i < len(m.snapshot.Entries) && i < start+visible; i++ {
		e := m.snapshot.Entries[i]
		name := e.Decision.VariableName
		if !e.Decision.ShouldInlineAsVariable {
			name = "(" + name + ")"
		}
		line := row(
			name,
			string(e.Source),
			fmt.Sprintf("%d", e.Attempts),
			humanizeBytes(len(e.Data)),
			humanizeAge(now, e.UpdatedAt),
			truncateMiddle(e.Endpoint.URL, urlWidth),
		)
		if i == m.selectedRow {
			lines = append(lines, styles.Selected.Width(width).Render(line))
			continue
		}
		src := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SourceColor(e.Source)))
		lines = append(lines, src.Render(line))
	}

	if e, ok := m.selectedEntry(); ok && e.Err != nil {
		lines = append(lines, styles.DangerText.Render(truncate(e.Err.Error(), width)))
	}
	return styles.Box.Width(width).Render(strings.Join(lines, "\n"))
}

// layoutLogViewport sizes the log pane to the space left by the table.
func (m *Model) layoutLogViewport() {
	if !m.ready {
		return
	}
	extra := 0
	if e, ok := m.selectedEntry(); ok && e.Err != nil {
		extra = 1
	}
	height := m.height - 2 - (m.tableHeight() + extra + 2) - 2
	width := max(m.width-2, 20)
	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(width, max(height, 1))
	}
	m.logViewport.Width = width
	m.logViewport.Height = max(height, 1)
	m.refreshLogViewport()
}

// refreshLogViewport re-renders the log lines and follows the tail.
func (m *Model) refreshLogViewport() {
	if m.logViewport.Width == 0 {
		return
	}
	styles := m.theme.Styles()
	if len(m.logLines) == 0 {
		m.logViewport.SetContent(styles.FaintText.Render("No log entries"))
		return
	}
	rendered := make([]string, len(m.logLines))
	for i, l := range m.logLines {
		rendered[i] = renderLogLine(l, styles)
	}
	m.logViewport.SetContent(strings.Join(rendered, "\n"))
	m.logViewport.GotoBottom()
}

// renderLogs renders the log pane.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	title := styles.MutedText.Render("Build log")
	if m.logPath != "" {
		title += " " + styles.FaintText.Render(truncateMiddle(m.logPath, 50))
	}
	if m.logErr != nil {
		title += " " + styles.DangerText.Render(m.logErr.Error())
	}
	return title + "\n" + styles.Box.Width(max(m.width-2, 20)).Render(m.logViewport.View())
}

// renderLogLine colours one parsed slog line.
func renderLogLine(l logtail.Line, styles Styles) string {
	if l.Level == "" {
		return styles.Text.Render(l.Msg)
	}
	var b strings.Builder
	if !l.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(l.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(styles.LevelStyle(l.Level).Bold(true).Render(padRight(l.Level, 5)))
	b.WriteString(" ")
	if c, ok := l.Attr("component"); ok {
		b.WriteString(styles.AccentText.Render("[" + c + "]"))
		b.WriteString(" ")
	}
	b.WriteString(styles.Text.Render(l.Msg))
	for _, a := range l.Attrs {
		if a.Key == "component" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(a.Key + "=" + a.Value))
	}
	return b.String()
}
