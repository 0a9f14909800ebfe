package document

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// TextParser reads plain text and markdown as-is.
type TextParser struct{}

// NewTextParser creates a new text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse normalizes line endings and strips a byte order mark.
func (p *TextParser) Parse(filename string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errors.New("content is not valid UTF-8")
	}
	text := strings.TrimPrefix(string(content), "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

// CanParse returns true for plain text and markdown.
func (p *TextParser) CanParse(mimeType string) bool {
	switch mimeType {
	case "text/plain", "text/markdown", "text/x-markdown":
		return true
	}
	return false
}

// MimeType returns the primary MIME type for this parser.
func (p *TextParser) MimeType() string {
	return "text/plain"
}
