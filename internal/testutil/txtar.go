// Package testutil loads txtar golden cases shared by package tests.
package testutil

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

// Case is one txtar archive: a free-form description followed by named
// files. Files under "want/" hold expected output.
type Case struct {
	Name        string
	Description string
	Files       map[string][]byte
	Want        map[string][]byte
}

// File returns the named input file, failing the test when it is missing.
func (c *Case) File(t *testing.T, name string) []byte {
	t.Helper()
	data, ok := c.Files[name]
	if !ok {
		t.Fatalf("case %s: missing file %q", c.Name, name)
	}
	return data
}

// Lines returns the non-empty lines of the named input file.
func (c *Case) Lines(t *testing.T, name string) []string {
	t.Helper()
	var out []string
	for _, line := range strings.Split(string(c.File(t, name)), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// Compare diffs got against want/<name>, ignoring trailing whitespace.
func (c *Case) Compare(t *testing.T, name string, got []byte) {
	t.Helper()
	want, ok := c.Want[name]
	if !ok {
		t.Fatalf("case %s: missing want/%s", c.Name, name)
	}
	if diff := cmp.Diff(Normalize(want), Normalize(got)); diff != "" {
		t.Errorf("case %s: want/%s mismatch (-want +got):\n%s", c.Name, name, diff)
	}
}

// LoadCases parses every *.txtar file in dir, sorted by name.
func LoadCases(t *testing.T, dir string) []*Case {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(dir, "*.txtar"))
	if err != nil {
		t.Fatalf("glob %q: %v", dir, err)
	}
	if len(files) == 0 {
		t.Fatalf("no txtar files found in %q", dir)
	}

	cases := make([]*Case, 0, len(files))
	for _, file := range files {
		ar, err := txtar.ParseFile(file)
		if err != nil {
			t.Fatalf("parse %q: %v", file, err)
		}
		c := &Case{
			Name:        strings.TrimSuffix(filepath.Base(file), ".txtar"),
			Description: strings.TrimSpace(string(ar.Comment)),
			Files:       make(map[string][]byte),
			Want:        make(map[string][]byte),
		}
		for _, f := range ar.Files {
			if rel, ok := strings.CutPrefix(f.Name, "want/"); ok {
				c.Want[rel] = f.Data
				continue
			}
			c.Files[f.Name] = f.Data
		}
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].Name < cases[j].Name })
	return cases
}

// Normalize trims trailing whitespace from every line and trailing newlines
// from the content.
func Normalize(content []byte) string {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
