// Package ui is the watch-mode dashboard.
//
// The dashboard is a read-only Bubble Tea program. It polls the shared
// state.Store for a snapshot every tick and tails the build log written by
// the slog handler, so it never blocks a build.
//
// Layout, top to bottom:
//
//   - header: pass number, phase, build or watch mode, degraded endpoint
//     count and the outcome of the last pass
//   - command bar: key bindings and the output directory
//   - endpoint table: variable, source, attempts, payload size, age and URL
//     for each endpoint in declaration order
//   - log pane: the tail of the build log, coloured by level
//
// Keys: j/k move the selection, l toggles the log pane, T cycles the theme
// and q or ctrl+c quits. Theme and log pane visibility persist through the
// prefs package.
package ui
