// Package document converts uploaded files into plain text for extraction.
package document

import (
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// Parser converts one file format to text.
type Parser interface {
	// Parse returns the textual content of the file.
	Parse(filename string, content []byte) (string, error)

	// CanParse returns true if this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Registry manages document parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by primary MIME type
}

// NewRegistry creates a registry with the default parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register(NewTextParser())
	r.Register(NewHTMLParser())
	r.Register(NewPDFParser())
	r.Register(NewDOCXParser())

	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// GetByMimeType returns a parser for the given MIME type, or nil.
func (r *Registry) GetByMimeType(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}
	for _, p := range r.parsers {
		if p.CanParse(mimeType) {
			return p
		}
	}
	return nil
}

// Parse converts content to text. The declared MIME type is used when it is
// specific; otherwise the file extension decides. It returns the text and the
// MIME type that was used.
func (r *Registry) Parse(filename, declaredType string, content []byte) (string, string, error) {
	mimeType := ResolveMimeType(filename, declaredType)
	p := r.GetByMimeType(mimeType)
	if p == nil {
		return "", mimeType, model.NewError(model.KindUnsupportedFormat,
			"unsupported file type %q (%s)", filepath.Ext(filename), mimeType)
	}

	text, err := p.Parse(filename, content)
	if err != nil {
		return "", mimeType, model.WrapError(model.KindUnsupportedFormat, err, "could not read %s", filepath.Base(filename))
	}
	if strings.TrimSpace(text) == "" {
		return "", mimeType, model.NewError(model.KindUnsupportedFormat, "%s contains no extractable text", filepath.Base(filename))
	}
	return text, mimeType, nil
}

// ResolveMimeType picks the MIME type for an upload.
func ResolveMimeType(filename, declaredType string) string {
	if declaredType != "" {
		if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil &&
			mediaType != "application/octet-stream" {
			return mediaType
		}
	}
	return MimeTypeFromExtension(filepath.Ext(filename))
}

// MimeTypeFromExtension returns the MIME type for a file extension.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return mimeDOCX
	default:
		return "application/octet-stream"
	}
}
