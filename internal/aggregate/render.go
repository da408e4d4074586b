// ABOUTME: Pure rendering of an aggregated bundle into a prompt document
// ABOUTME: Labelled sections in declared resource order, unavailable markers kept

package aggregate

import (
	"bytes"
	"encoding/json"
	"strings"
)

const unavailableMarker = "(unavailable)"

// Render formats a bundle as a single document with one labelled section
// per resource, in the given order. Unavailable resources keep their
// section with an explicit marker so downstream prompts see what was
// attempted. Render is a pure formatting step: it never fetches.
func Render(uris []string, bundle Bundle) string {
	var b strings.Builder
	for i, uri := range uris {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(uri)
		b.WriteString("\n\n")

		payload, ok := bundle[uri]
		if !ok || payload == nil {
			b.WriteString(unavailableMarker)
			b.WriteString("\n")
			continue
		}
		b.WriteString(indentJSON(payload))
		b.WriteString("\n")
	}
	return b.String()
}

// indentJSON pretty-prints a payload, falling back to the raw bytes if it
// somehow cannot be re-indented.
func indentJSON(payload json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}
