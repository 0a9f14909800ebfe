package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/conversation"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// TemplateService handles template operations.
type TemplateService struct {
	store   store.TemplateStore
	matcher *conversation.Matcher
	logger  *logger.Logger
}

// NewTemplateService creates a new template service.
func NewTemplateService(s store.TemplateStore, matcher *conversation.Matcher, log *logger.Logger) *TemplateService {
	return &TemplateService{
		store:   s,
		matcher: matcher,
		logger:  logger.OrGlobal(log),
	}
}

// Create saves a confirmed template and returns its id.
func (s *TemplateService) Create(ctx context.Context, t *model.Template) (string, error) {
	id, err := s.store.Create(ctx, t)
	if err != nil {
		s.logFailure("create", "", err)
		return "", err
	}
	return id, nil
}

// List returns template summaries, oldest first.
func (s *TemplateService) List(ctx context.Context) ([]model.TemplateSummary, error) {
	summaries, err := s.store.List(ctx)
	if err != nil {
		s.logFailure("list", "", err)
		return nil, err
	}
	return summaries, nil
}

// Get returns one template.
func (s *TemplateService) Get(ctx context.Context, id string) (*model.Template, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		s.logFailure("get", id, err)
		return nil, err
	}
	return t, nil
}

// Update replaces the template stored under id.
func (s *TemplateService) Update(ctx context.Context, id string, t *model.Template) (*model.Template, error) {
	if t == nil {
		return nil, model.NewError(model.KindInvalidTemplate, "template is required")
	}
	c := t.Clone()
	c.ID = id
	updated, err := s.store.Update(ctx, c)
	if err != nil {
		s.logFailure("update", id, err)
		return nil, err
	}
	return updated, nil
}

// Delete removes a template and its variables.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logFailure("delete", id, err)
		return err
	}
	return nil
}

// Export renders the stored template as markdown.
func (s *TemplateService) Export(ctx context.Context, id string) (*model.ExportResponse, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	md, err := store.Export(t)
	if err != nil {
		return nil, err
	}
	return &model.ExportResponse{TemplateID: t.ID, Markdown: md}, nil
}

// Variables returns the variables of the template stored under id.
func (s *TemplateService) Variables(ctx context.Context, id string) (*model.VariablesResponse, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	vars := t.Variables
	if vars == nil {
		vars = []model.Variable{}
	}
	return &model.VariablesResponse{TemplateID: t.ID, Variables: vars}, nil
}

// Match ranks stored templates against a free-text query.
func (s *TemplateService) Match(ctx context.Context, query string) (*model.MatchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewError(model.KindInvalidInput, "query is required")
	}
	matches, err := s.matcher.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	return &model.MatchResponse{
		Matches:   matches,
		Threshold: s.matcher.Threshold(),
	}, nil
}

// logFailure logs unexpected store failures. Recoverable kinds are the
// caller's business and are not logged.
func (s *TemplateService) logFailure(op, id string, err error) {
	switch model.KindOf(err) {
	case model.KindNotFound, model.KindInvalidTemplate, model.KindInvalidInput:
		return
	}
	s.logger.WithTemplate(id).Error("template operation failed",
		zap.String("operation", op),
		zap.Error(err),
	)
}
