// Package sanitize guards against a known model failure mode: emitting a raw
// JSON object that mimics the internal decision schema where natural-language
// text belongs. Surfacing that JSON to the user is worse than showing
// nothing, so candidate text is probed with the lenient parser and either
// unwrapped, suppressed, or passed through untouched.
package sanitize

import (
	"strings"

	"github.com/tambo-ai/tambo-go/internal/partialjson"
)

// schemaIndicators are keys whose presence marks a parsed object as a
// misfired partial decision. The list mirrors the decision schema by hand;
// if the schema grows a field, add it here too.
var schemaIndicators = []string{
	"reasoning",
	"componentName",
	"props",
	"componentState",
	"suggestedActions",
}

// Clean returns the display-safe form of candidate response text. Plain text
// passes through unchanged (the common case). Text that parses to an object
// with a message field unwraps one level; text that parses to something
// resembling a decision object is suppressed to "".
func Clean(text string) string {
	if text == "" {
		return ""
	}
	parsed, err := partialjson.Parse(strings.TrimSpace(text))
	if err != nil {
		// Not JSON at all: ordinary prose.
		return text
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return text
	}
	if msg, ok := obj["message"].(string); ok {
		return msg
	}
	for _, key := range schemaIndicators {
		if _, ok := obj[key]; ok {
			return ""
		}
	}
	return text
}
