// Package inject renders inlined endpoint data as script tags and places
// them in the document head.
package inject

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cascadiacollections/apinline/internal/endpoint"
	"github.com/cascadiacollections/apinline/internal/state"
)

// ErrNoHead is returned when a document has no closing head tag.
var ErrNoHead = errors.New("document has no </head>")

// ScriptTag renders `<script>window.NAME = DATA;</script>`. Names that are
// not identifiers use `window["NAME"]`. DATA is escaped so that it cannot
// terminate the script element; the evaluated value is unchanged.
func ScriptTag(name string, data json.RawMessage) string {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	var buf bytes.Buffer
	json.HTMLEscape(&buf, data)

	var b strings.Builder
	b.WriteString("<script>window")
	if endpoint.IsIdentifier(name) {
		b.WriteString(".")
		b.WriteString(name)
	} else {
		quoted, _ := json.Marshal(name)
		b.WriteString("[")
		b.Write(quoted)
		b.WriteString("]")
	}
	b.WriteString(" = ")
	b.Write(buf.Bytes())
	b.WriteString(";</script>")
	return b.String()
}

// Tags renders one script tag per entry that inlines as a variable, in the
// order given.
func Tags(entries []state.Entry) []string {
	var tags []string
	for _, e := range entries {
		if !e.Decision.ShouldInlineAsVariable {
			continue
		}
		tags = append(tags, ScriptTag(e.Decision.VariableName, e.Data))
	}
	return tags
}

// IntoHead inserts tags immediately before the first </head> of doc.
// Markup inside comments, scripts and other raw-text elements is ignored
// when looking for it.
func IntoHead(doc []byte, tags []string) ([]byte, error) {
	if len(tags) == 0 {
		return doc, nil
	}
	at, ok := headEnd(doc)
	if !ok {
		return doc, ErrNoHead
	}

	insert := strings.Join(tags, "")
	out := make([]byte, 0, len(doc)+len(insert))
	out = append(out, doc[:at]...)
	out = append(out, insert...)
	out = append(out, doc[at:]...)
	return out, nil
}

// headEnd returns the byte offset of the first </head> end tag.
func headEnd(doc []byte) (int, bool) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return 0, false
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Head {
				return offset, true
			}
		}
		offset += raw
	}
}
