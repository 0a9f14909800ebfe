package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>RESIDENTIAL LEASE</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Tenant: </w:t></w:r><w:r><w:t>Jane Doe</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl><w:tr><w:tc><w:p><w:r><w:t>Rent</w:t></w:r><w:r><w:tab/><w:t>$2,000</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
  </w:body>
</w:document>`

func TestRegistryGetByMimeType(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		mimeType string
		want     string
	}{
		{"text/plain", "text/plain"},
		{"text/markdown", "text/plain"},
		{"text/html", "text/html"},
		{"application/pdf", "application/pdf"},
		{mimeDOCX, mimeDOCX},
	}
	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			p := r.GetByMimeType(tt.mimeType)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.MimeType())
		})
	}

	assert.Nil(t, r.GetByMimeType("image/png"))
}

func TestResolveMimeType(t *testing.T) {
	assert.Equal(t, "text/plain", ResolveMimeType("lease.txt", ""))
	assert.Equal(t, "text/plain", ResolveMimeType("lease.txt", "application/octet-stream"))
	assert.Equal(t, "text/markdown", ResolveMimeType("lease.bin", "text/markdown; charset=utf-8"))
	assert.Equal(t, mimeDOCX, ResolveMimeType("Lease.DOCX", ""))
	assert.Equal(t, "application/octet-stream", ResolveMimeType("lease.exe", ""))
}

func TestRegistryParseText(t *testing.T) {
	r := NewRegistry()

	text, mimeType, err := r.Parse("lease.md", "", []byte("\ufeff# Lease\r\nTenant: Jane Doe\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", mimeType)
	assert.Equal(t, "# Lease\nTenant: Jane Doe\n", text)
}

func TestRegistryParseDOCX(t *testing.T) {
	r := NewRegistry()

	text, mimeType, err := r.Parse("lease.docx", "", buildDOCX(t, sampleDocumentXML))
	require.NoError(t, err)
	assert.Equal(t, mimeDOCX, mimeType)
	assert.Equal(t, "RESIDENTIAL LEASE\n\nTenant: Jane Doe\n\nRent\t$2,000", text)
}

func TestRegistryParseHTML(t *testing.T) {
	r := NewRegistry()

	page := `<html><head><title>Lease</title></head><body>
<article><h1>Residential Lease</h1>
<p>This lease is made between <strong>John Smith</strong> and Jane Doe for the property at 12 Main Street.
The tenant agrees to pay rent monthly and to keep the premises in good condition throughout the term.</p>
<p>The landlord agrees to maintain the structure and common areas of the building in good repair.</p>
</article></body></html>`

	text, mimeType, err := r.Parse("lease.html", "text/html", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "text/html", mimeType)
	assert.Contains(t, text, "John Smith")
	assert.Contains(t, text, "Jane Doe")
	assert.NotContains(t, text, "<p>")
}

func TestRegistryParseFailures(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{name: "unsupported extension", filename: "photo.png", content: []byte{0x89, 'P', 'N', 'G'}},
		{name: "empty text", filename: "blank.txt", content: []byte("  \n\t ")},
		{name: "invalid utf8", filename: "bad.txt", content: []byte{0xff, 0xfe, 0xfd}},
		{name: "corrupt docx", filename: "bad.docx", content: []byte("not a zip")},
		{name: "corrupt pdf", filename: "bad.pdf", content: []byte("%PDF-1.4 garbage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Parse(tt.filename, "", tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrUnsupportedFormat)
		})
	}
}

func TestDOCXMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = NewDOCXParser().Parse("x.docx", buf.Bytes())
	assert.Error(t, err)
}
