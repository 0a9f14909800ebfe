package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DOCXParser extracts paragraph text from Word documents, tables included.
type DOCXParser struct{}

// NewDOCXParser creates a new DOCX parser.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

// Parse reads word/document.xml and returns non-empty paragraphs separated
// by blank lines.
func (p *DOCXParser) Parse(filename string, content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	var body io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("open document part: %w", err)
			}
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}
	defer body.Close()

	return paragraphs(xml.NewDecoder(body))
}

func paragraphs(dec *xml.Decoder) (string, error) {
	var (
		out    []string
		para   strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document part: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(para.String()); s != "" {
					out = append(out, s)
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(out, "\n\n"), nil
}

// CanParse returns true for DOCX.
func (p *DOCXParser) CanParse(mimeType string) bool {
	return mimeType == mimeDOCX
}

// MimeType returns the primary MIME type for this parser.
func (p *DOCXParser) MimeType() string {
	return mimeDOCX
}
