package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// templateRecord is the KV value for one template. The whole template,
// variables included, lives in a single entry so a purge removes everything
// at once.
type templateRecord struct {
	Template      model.Template `json:"template"`
	VariableCount int            `json:"variable_count"`
}

// KVStore persists templates in a JetStream key-value bucket.
type KVStore struct {
	kv     jetstream.KeyValue
	locks  keyedMutex
	now    Clock
	logger *logger.Logger
}

// NewKVStore creates a template store on top of bucket kv.
func NewKVStore(kv jetstream.KeyValue, log *logger.Logger) *KVStore {
	return &KVStore{
		kv:     kv,
		now:    time.Now,
		logger: logger.OrGlobal(log),
	}
}

// Create stores a new template.
func (s *KVStore) Create(ctx context.Context, t *model.Template) (string, error) {
	c, err := prepare(t)
	if err != nil {
		metrics.RecordTemplateOperation("create", err)
		return "", err
	}
	now := s.now().UTC()
	c.ID = NewID()
	c.CreatedAt = now
	c.UpdatedAt = now

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	data, err := json.Marshal(templateRecord{Template: *c, VariableCount: len(c.Variables)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}
	if _, err := s.kv.Create(ctx, c.ID, data); err != nil {
		metrics.RecordTemplateOperation("create", err)
		return "", fmt.Errorf("failed to store template: %w", err)
	}

	metrics.RecordTemplateOperation("create", nil)
	s.logger.Info("template created", zap.String("template_id", c.ID), zap.String("title", c.Title))
	return c.ID, nil
}

// List returns summaries ordered by creation time. Corrupt records are
// logged and left out so one bad entry does not hide the rest.
func (s *KVStore) List(ctx context.Context) ([]model.TemplateSummary, error) {
	keys, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return []model.TemplateSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	out := make([]model.TemplateSummary, 0, len(keys))
	for _, key := range keys {
		t, err := s.Get(ctx, key)
		switch model.KindOf(err) {
		case model.KindNotFound:
			continue // deleted between Keys and Get
		case model.KindStorageCorruption:
			s.logger.Warn("skipping corrupt template in listing", zap.String("template_id", key), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t.Summary())
	}
	sortSummaries(out)
	metrics.TemplatesStored.Set(float64(len(out)))
	return out, nil
}

// Get loads and decodes one template.
func (s *KVStore) Get(ctx context.Context, id string) (*model.Template, error) {
	rec, _, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Template.Clone(), nil
}

func (s *KVStore) load(ctx context.Context, id string) (*templateRecord, uint64, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return nil, 0, templateNotFound(id)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load template: %w", err)
	}

	var rec templateRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		s.logger.Error("undecodable template record", zap.String("template_id", id), zap.Error(err))
		return nil, 0, model.WrapError(model.KindStorageCorruption, err, "template %q record is unreadable", id)
	}
	if rec.VariableCount != len(rec.Template.Variables) {
		s.logger.Error("template references missing variable records",
			zap.String("template_id", id),
			zap.Int("expected", rec.VariableCount),
			zap.Int("found", len(rec.Template.Variables)),
		)
		return nil, 0, model.NewError(model.KindStorageCorruption, "template %q is missing variable records", id)
	}
	return &rec, entry.Revision(), nil
}

// Update replaces an existing template using optimistic concurrency on the
// entry revision.
func (s *KVStore) Update(ctx context.Context, t *model.Template) (*model.Template, error) {
	c, err := prepare(t)
	if err != nil {
		metrics.RecordTemplateOperation("update", err)
		return nil, err
	}

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	existing, revision, err := s.load(ctx, c.ID)
	if err != nil {
		metrics.RecordTemplateOperation("update", err)
		return nil, err
	}
	c.CreatedAt = existing.Template.CreatedAt
	c.UpdatedAt = s.now().UTC()

	data, err := json.Marshal(templateRecord{Template: *c, VariableCount: len(c.Variables)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	if _, err := s.kv.Update(ctx, c.ID, data, revision); err != nil {
		metrics.RecordTemplateOperation("update", err)
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	metrics.RecordTemplateOperation("update", nil)
	return c.Clone(), nil
}

// Delete purges the template entry.
func (s *KVStore) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.kv.Get(ctx, id); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
			err = templateNotFound(id)
		}
		metrics.RecordTemplateOperation("delete", err)
		return err
	}
	if err := s.kv.Purge(ctx, id); err != nil {
		metrics.RecordTemplateOperation("delete", err)
		return fmt.Errorf("failed to delete template: %w", err)
	}

	metrics.RecordTemplateOperation("delete", nil)
	s.logger.Info("template deleted", zap.String("template_id", id))
	return nil
}

// KVDocumentStore keeps uploaded documents in a JetStream key-value bucket.
type KVDocumentStore struct {
	kv jetstream.KeyValue
}

// NewKVDocumentStore creates a document store on top of bucket kv.
func NewKVDocumentStore(kv jetstream.KeyValue) *KVDocumentStore {
	return &KVDocumentStore{kv: kv}
}

type documentRecord struct {
	model.Document
	Text string `json:"text"`
}

// Save stores doc under its id.
func (s *KVDocumentStore) Save(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(documentRecord{Document: *doc, Text: doc.Text})
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := s.kv.Put(ctx, doc.ID, data); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// Get loads one document.
func (s *KVDocumentStore) Get(ctx context.Context, id string) (*model.Document, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrInvalidKey) {
		return nil, documentNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	var rec documentRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, model.WrapError(model.KindStorageCorruption, err, "document %q record is unreadable", id)
	}
	doc := rec.Document
	doc.Text = rec.Text
	return &doc, nil
}

// keyedMutex serializes work per key without holding a global lock while
// the work runs.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
