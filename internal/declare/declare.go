// Package declare generates the TypeScript declaration file that types the
// inlined globals.
package declare

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"text/template"
	"time"

	"github.com/cascadiacollections/apinline/internal/endpoint"
	"github.com/cascadiacollections/apinline/internal/publish"
	"github.com/cascadiacollections/apinline/internal/state"
)

//go:embed globals.d.ts.tmpl
var defaultTemplate string

var tmpl = template.Must(template.New("globals.d.ts").Funcs(template.FuncMap{
	"property": property,
}).Parse(defaultTemplate))

// Var is one declared global.
type Var struct {
	Name string
	Type string
}

// Data feeds the declaration template.
type Data struct {
	Generator   string
	GeneratedAt time.Time
	Vars        []Var
}

// Render writes the declaration file for data to w.
func Render(w io.Writer, data Data) error {
	if data.Generator == "" {
		data.Generator = "apinline"
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render declarations: %w", err)
	}
	return nil
}

// VarsFor lists the inlined entries as declarations, in store order.
func VarsFor(entries []state.Entry) []Var {
	var vars []Var
	for _, e := range entries {
		if !e.Decision.ShouldInlineAsVariable {
			continue
		}
		typ := e.Decision.TypeReference
		if typ == "" {
			typ = "any"
		}
		vars = append(vars, Var{Name: e.Decision.VariableName, Type: typ})
	}
	return vars
}

// Emit writes the declaration file for entries to path. It reports false
// without touching the file system when there is nothing stored yet.
func Emit(path string, entries []state.Entry, now time.Time) (bool, error) {
	if len(entries) == 0 {
		return false, nil
	}
	var buf bytes.Buffer
	if err := Render(&buf, Data{GeneratedAt: now, Vars: VarsFor(entries)}); err != nil {
		return false, err
	}
	if err := publish.WriteFile(path, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// property quotes names that are not plain identifiers.
func property(name string) string {
	if endpoint.IsIdentifier(name) {
		return name
	}
	return strconv.Quote(name)
}
