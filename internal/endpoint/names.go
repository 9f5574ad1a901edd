package endpoint

import (
	"net/url"
	"strings"
	"unicode"
)

// VariableName derives the global variable name for an endpoint URL when no
// explicit name is configured. The last non-empty path segment (or the host
// when the path is empty) is sanitized to [A-Z0-9_], guarded against a
// leading digit and joined to prefix with an underscore.
//
//	VariableName("https://api.example.com/v1/top-podcasts", "API_DATA") // API_DATA_TOP_PODCASTS
func VariableName(rawURL, prefix string) string {
	base := Sanitize(lastSegment(rawURL))
	if prefix == "" {
		return base
	}
	return prefix + "_" + base
}

// Sanitize replaces every character outside [A-Za-z0-9] with '_', prefixes
// '_' when the result starts with a digit and uppercases it.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 1)
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		b.WriteByte('_')
	}
	out := b.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// IsIdentifier reports whether name is usable as a bare JavaScript
// identifier (ASCII subset).
func IsIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r < unicode.MaxASCII && unicode.IsLetter(r):
		case i > 0 && r < unicode.MaxASCII && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	if host := u.Hostname(); host != "" {
		return host
	}
	return rawURL
}
