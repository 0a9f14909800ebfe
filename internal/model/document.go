package model

import (
	"time"
)

// Document is an uploaded file after conversion to text.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Text      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentUploadResponse is the reply to an upload.
type DocumentUploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// DocumentInfo is the metadata view of a stored document.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	TextLength int       `json:"text_length"`
	CreatedAt  time.Time `json:"created_at"`
}

// Info returns the metadata view of d.
func (d *Document) Info() DocumentInfo {
	return DocumentInfo{
		ID:         d.ID,
		Filename:   d.Filename,
		MimeType:   d.MimeType,
		TextLength: len(d.Text),
		CreatedAt:  d.CreatedAt,
	}
}
