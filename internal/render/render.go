// Package render fills template bodies with bound values.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// placeholderPattern matches {{key}} with optional inner whitespace.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// UnresolvedMarker is what an unbound placeholder renders as.
func UnresolvedMarker(key string) string {
	return fmt.Sprintf("[[UNRESOLVED: %s]]", key)
}

// Result is a rendered draft.
type Result struct {
	Text string
	// Unresolved lists placeholder keys without a bound value, in order of
	// first appearance.
	Unresolved []string
}

// Render substitutes every placeholder in body. Values are inserted
// verbatim; placeholders without a non-empty binding become an explicit
// marker. Render is pure.
func Render(body string, bindings map[string]string) Result {
	var unresolved []string
	seen := make(map[string]struct{})

	text := placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := bindings[key]; ok && strings.TrimSpace(value) != "" {
			return value
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			unresolved = append(unresolved, key)
		}
		return UnresolvedMarker(key)
	})
	return Result{Text: text, Unresolved: unresolved}
}

// Placeholders returns the distinct keys referenced by body in order.
func Placeholders(body string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}
	return keys
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML converts rendered markdown to HTML. Raw HTML in the draft is omitted.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return buf.String(), nil
}
