package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a millisecond count. Configuration files may give either a bare
// integer ("requestTimeout = 5000") or a Go duration string ("5s").
type Duration int64

// Std converts d to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Millisecond
}

// DurationOf converts a time.Duration to milliseconds, truncating.
func DurationOf(v time.Duration) Duration {
	return Duration(v / time.Millisecond)
}

func (d *Duration) set(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(ms)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: want milliseconds or a value like \"1.5s\"", raw)
	}
	*d = DurationOf(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.set(string(text))
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(d), 10)), nil
}

// UnmarshalJSON accepts numbers and strings.
func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.set(strings.Trim(string(data), `"`))
}

// UnmarshalYAML accepts scalar nodes.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	return d.set(node.Value)
}
