// Package publish writes fetched data to the build output.
package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrMkdirFailed indicates the output directory could not be created.
	ErrMkdirFailed = errors.New("failed to create output directory")

	// ErrWriteFailed indicates the output file could not be written.
	ErrWriteFailed = errors.New("failed to write output file")
)

// Global is one named value of the globals manifest.
type Global struct {
	Name string
	Data json.RawMessage
}

// WriteJSON writes data verbatim to path, creating parent directories. The
// file is replaced atomically so readers never observe a partial document.
func WriteJSON(path string, data json.RawMessage) error {
	return WriteFile(path, data)
}

// WriteFile writes arbitrary generated content with the same guarantees as
// WriteJSON.
func WriteFile(path string, data []byte) error {
	return writeAtomic(path, data)
}

// WriteManifest writes the globals manifest: one JSON object mapping each
// variable name to its data, keys in the given order.
func WriteManifest(path string, globals []Global) error {
	return writeAtomic(path, EncodeManifest(globals))
}

// EncodeManifest renders globals as a JSON object preserving their order.
// Values that are not valid JSON are encoded as null.
func EncodeManifest(globals []Global) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range globals {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(g.Name)
		buf.Write(key)
		buf.WriteByte(':')
		if len(g.Data) == 0 || !json.Valid(g.Data) {
			buf.WriteString("null")
			continue
		}
		buf.Write(g.Data)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMkdirFailed, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, path, err)
	}
	committed = true
	return nil
}
