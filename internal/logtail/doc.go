// Package logtail reads the end of a build log and parses its lines.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded by the window rather than the file size. Missing files yield no
// lines and no error; the log may not exist before the first build.
//
// Parse understands the key=value lines written by slog's text handler:
//
//	time=2026-10-19T12:00:00.000Z level=WARN msg="fetch failed, using fallback" url=https://api.example.com/shows
//
// Lines in any other shape come back with only Raw and Msg set.
package logtail
