// Package store persists templates and uploaded documents.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// TemplateStore is the durable collection of templates.
//
// Implementations must make Delete all-or-nothing: a template and its
// variables disappear together. Mutations on one template id are mutually
// exclusive; reads may run concurrently with unrelated writes.
type TemplateStore interface {
	// Create validates and stores t, assigning its id and creation time.
	Create(ctx context.Context, t *model.Template) (string, error)

	// List returns summaries ordered by creation time, oldest first.
	List(ctx context.Context) ([]model.TemplateSummary, error)

	// Get returns a copy of the template with its variables.
	Get(ctx context.Context, id string) (*model.Template, error)

	// Update replaces the mutable fields of an existing template.
	Update(ctx context.Context, t *model.Template) (*model.Template, error)

	// Delete removes the template and all of its variables.
	Delete(ctx context.Context, id string) error
}

// DocumentStore holds uploaded documents until they are extracted.
type DocumentStore interface {
	Save(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
}

// Clock returns the current time. Tests replace it for stable timestamps.
type Clock func() time.Time

// NewID returns a new opaque identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func templateNotFound(id string) error {
	return model.NewError(model.KindNotFound, "template %q not found", id)
}

func documentNotFound(id string) error {
	return model.NewError(model.KindNotFound, "document %q not found", id)
}

// prepare validates t and fills defaults. It never mutates the caller's value.
func prepare(t *model.Template) (*model.Template, error) {
	if t == nil {
		return nil, model.NewError(model.KindInvalidTemplate, "template is required")
	}
	c := t.Clone()
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
