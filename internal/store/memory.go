package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// MemoryStore keeps templates in process memory. Template headers and
// variable records are held in separate maps so that deletion is observable
// as a single step only because both maps change under one lock.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*model.Template // headers; Variables is nil
	variables map[string][]model.Variable
	counts    map[string]int
	now       Clock
	logger    *logger.Logger
}

// NewMemoryStore creates an empty in-memory template store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*model.Template),
		variables: make(map[string][]model.Variable),
		counts:    make(map[string]int),
		now:       time.Now,
		logger:    logger.OrGlobal(log),
	}
}

// WithClock replaces the time source.
func (s *MemoryStore) WithClock(now Clock) *MemoryStore {
	s.now = now
	return s
}

// Create stores a new template.
func (s *MemoryStore) Create(ctx context.Context, t *model.Template) (string, error) {
	c, err := prepare(t)
	if err != nil {
		metrics.RecordTemplateOperation("create", err)
		return "", err
	}

	now := s.now().UTC()
	c.ID = NewID()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.mu.Lock()
	s.put(c)
	total := len(s.templates)
	s.mu.Unlock()

	metrics.RecordTemplateOperation("create", nil)
	metrics.TemplatesStored.Set(float64(total))
	s.logger.Info("template created",
		zap.String("template_id", c.ID),
		zap.String("title", c.Title),
		zap.Int("variables", len(c.Variables)),
	)
	return c.ID, nil
}

// put writes header and variables. Callers hold s.mu.
func (s *MemoryStore) put(c *model.Template) {
	vars := c.Variables
	header := *c
	header.Variables = nil
	s.templates[c.ID] = &header
	s.variables[c.ID] = vars
	s.counts[c.ID] = len(vars)
}

// List returns summaries ordered by creation time.
func (s *MemoryStore) List(ctx context.Context) ([]model.TemplateSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TemplateSummary, 0, len(s.templates))
	for id, header := range s.templates {
		summary := header.Summary()
		summary.VariableCount = s.counts[id]
		out = append(out, summary)
	}
	sortSummaries(out)
	return out, nil
}

// Get returns a deep copy of the template.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Template, error) {
	s.mu.RLock()
	header, ok := s.templates[id]
	vars, hasVars := s.variables[id]
	count := s.counts[id]
	s.mu.RUnlock()

	if !ok {
		return nil, templateNotFound(id)
	}
	if !hasVars || len(vars) != count {
		s.logger.Error("template references missing variable records",
			zap.String("template_id", id),
			zap.Int("expected", count),
			zap.Int("found", len(vars)),
		)
		return nil, model.NewError(model.KindStorageCorruption, "template %q is missing variable records", id)
	}

	t := *header
	t.Variables = vars
	return t.Clone(), nil
}

// Update replaces title, metadata, body and variables of an existing template.
func (s *MemoryStore) Update(ctx context.Context, t *model.Template) (*model.Template, error) {
	c, err := prepare(t)
	if err != nil {
		metrics.RecordTemplateOperation("update", err)
		return nil, err
	}

	s.mu.Lock()
	existing, ok := s.templates[c.ID]
	if !ok {
		s.mu.Unlock()
		err := templateNotFound(c.ID)
		metrics.RecordTemplateOperation("update", err)
		return nil, err
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.put(c)
	s.mu.Unlock()

	metrics.RecordTemplateOperation("update", nil)
	return c.Clone(), nil
}

// Delete removes the template header and its variable records together.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.templates[id]; !ok {
		s.mu.Unlock()
		err := templateNotFound(id)
		metrics.RecordTemplateOperation("delete", err)
		return err
	}
	delete(s.templates, id)
	delete(s.variables, id)
	delete(s.counts, id)
	total := len(s.templates)
	s.mu.Unlock()

	metrics.RecordTemplateOperation("delete", nil)
	metrics.TemplatesStored.Set(float64(total))
	s.logger.Info("template deleted", zap.String("template_id", id))
	return nil
}

func sortSummaries(out []model.TemplateSummary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

// MemoryDocumentStore keeps uploaded documents in process memory.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

// NewMemoryDocumentStore creates an empty document store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]*model.Document)}
}

// Save stores doc under its id.
func (s *MemoryDocumentStore) Save(ctx context.Context, doc *model.Document) error {
	c := *doc
	s.mu.Lock()
	s.docs[doc.ID] = &c
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the document.
func (s *MemoryDocumentStore) Get(ctx context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, documentNotFound(id)
	}
	c := *doc
	return &c, nil
}
