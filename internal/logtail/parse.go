package logtail

import (
	"strconv"
	"strings"
	"time"
)

// Attr is one key=value pair of a log line, excluding time, level and msg.
type Attr struct {
	Key   string
	Value string
}

// Line is a parsed slog text line.
type Line struct {
	Raw   string
	Time  time.Time
	Level string
	Msg   string
	Attrs []Attr
}

// Attr returns the value of key and whether it was present.
func (l Line) Attr(key string) (string, bool) {
	for _, a := range l.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Parse splits a slog text handler line into its fields. Unrecognised
// lines are returned with Msg set to the whole line.
func Parse(raw string) Line {
	line := Line{Raw: raw}
	pairs, ok := splitPairs(raw)
	if !ok {
		line.Msg = strings.TrimSpace(raw)
		return line
	}
	for _, a := range pairs {
		switch a.Key {
		case "time":
			if t, err := time.Parse(time.RFC3339Nano, a.Value); err == nil {
				line.Time = t
			}
		case "level":
			line.Level = strings.ToUpper(a.Value)
		case "msg":
			line.Msg = a.Value
		default:
			line.Attrs = append(line.Attrs, a)
		}
	}
	return line
}

// splitPairs tokenises key=value pairs where values may be quoted Go
// strings. It fails unless every token is a pair and a msg key exists.
func splitPairs(s string) ([]Attr, bool) {
	var out []Attr
	hasMsg := false
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			break
		}
		eq := strings.IndexByte(s, '=')
		if eq <= 0 || strings.ContainsAny(s[:eq], " \"") {
			return nil, false
		}
		key := s[:eq]
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, false
			}
			value, _ = strconv.Unquote(quoted)
			s = s[len(quoted):]
		} else {
			end := strings.IndexByte(s, ' ')
			if end < 0 {
				end = len(s)
			}
			value = s[:end]
			s = s[end:]
		}
		if key == "msg" {
			hasMsg = true
		}
		out = append(out, Attr{Key: key, Value: value})
	}
	return out, hasMsg
}
