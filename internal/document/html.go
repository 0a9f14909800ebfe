package document

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// HTMLParser extracts the main content of an HTML page as markdown.
type HTMLParser struct {
	converter *md.Converter
}

// NewHTMLParser creates a new HTML parser.
func NewHTMLParser() *HTMLParser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLParser{converter: converter}
}

// Parse runs readability over the page and converts the result to markdown.
// Pages readability cannot make sense of are converted whole.
func (p *HTMLParser) Parse(filename string, content []byte) (string, error) {
	source := string(content)
	title := ""
	if article, err := readability.FromReader(bytes.NewReader(content), nil); err == nil && strings.TrimSpace(article.Content) != "" {
		source = article.Content
		title = strings.TrimSpace(article.Title)
	}

	markdown, err := p.converter.ConvertString(source)
	if err != nil {
		return "", fmt.Errorf("convert HTML: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n"))

	if title != "" && !strings.HasPrefix(markdown, "#") {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown, nil
}

// CanParse returns true for HTML.
func (p *HTMLParser) CanParse(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// MimeType returns the primary MIME type for this parser.
func (p *HTMLParser) MimeType() string {
	return "text/html"
}
