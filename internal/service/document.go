package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/document"
	"github.com/capitalize-ai/legal-drafting/internal/extraction"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// DocumentService converts uploads to text and runs extraction on them.
type DocumentService struct {
	registry *document.Registry
	docs     store.DocumentStore
	engine   *extraction.Engine
	maxSize  int64
	now      func() time.Time
	logger   *logger.Logger
}

// NewDocumentService creates a new document service. maxSize bounds the
// accepted upload size in bytes.
func NewDocumentService(registry *document.Registry, docs store.DocumentStore, engine *extraction.Engine, maxSize int64, log *logger.Logger) *DocumentService {
	return &DocumentService{
		registry: registry,
		docs:     docs,
		engine:   engine,
		maxSize:  maxSize,
		now:      time.Now,
		logger:   logger.OrGlobal(log),
	}
}

// MaxSize returns the largest accepted upload in bytes.
func (s *DocumentService) MaxSize() int64 {
	return s.maxSize
}

// Upload converts content to text and keeps it for extraction.
func (s *DocumentService) Upload(ctx context.Context, filename, declaredType string, content []byte) (*model.DocumentUploadResponse, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, model.NewError(model.KindInvalidInput, "filename is required")
	}
	if len(content) == 0 {
		return nil, model.NewError(model.KindInvalidInput, "file is empty")
	}
	if s.maxSize > 0 && int64(len(content)) > s.maxSize {
		return nil, model.NewError(model.KindInvalidInput, "file exceeds the maximum size of %d bytes", s.maxSize)
	}

	text, mimeType, err := s.registry.Parse(filename, declaredType, content)
	if err != nil {
		s.logger.Info("document rejected",
			zap.String("filename", filename),
			zap.String("declared_type", declaredType),
			zap.Error(err),
		)
		return nil, err
	}

	doc := &model.Document{
		ID:        store.NewID(),
		Filename:  filename,
		MimeType:  mimeType,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		s.logger.Error("failed to save document", zap.String("filename", filename), zap.Error(err))
		return nil, err
	}
	metrics.DocumentsUploaded.WithLabelValues(mimeType).Inc()

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", filename),
		zap.String("mime_type", mimeType),
		zap.Int("text_length", len(text)),
	)
	return &model.DocumentUploadResponse{
		DocumentID: doc.ID,
		Filename:   filename,
		Status:     "uploaded",
		Message:    "Document uploaded. Run extraction to build a template from it.",
	}, nil
}

// Get returns document metadata.
func (s *DocumentService) Get(ctx context.Context, id string) (*model.DocumentInfo, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info := doc.Info()
	return &info, nil
}

// Extract builds a candidate template from an uploaded document. The
// result is not stored; saving it is a separate template create.
func (s *DocumentService) Extract(ctx context.Context, id string) (*model.ExtractionResult, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Extract(ctx, doc.Text, doc.Filename)
	if err != nil {
		log := s.logger.With(zap.String("document_id", id), zap.String("analyzer", s.engine.AnalyzerName()))
		if model.KindOf(err) == "" {
			log.Error("extraction failed", zap.Error(err))
		} else {
			log.Warn("extraction failed", zap.Error(err))
		}
		return nil, err
	}
	return result, nil
}
