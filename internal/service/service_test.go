package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/capitalize-ai/legal-drafting/internal/conversation"
	"github.com/capitalize-ai/legal-drafting/internal/document"
	"github.com/capitalize-ai/legal-drafting/internal/extraction"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/render"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

const leaseDocument = `RESIDENTIAL LEASE AGREEMENT

This Residential Lease Agreement is made on January 5, 2024 between John Smith ("Landlord") and Jane Roe ("Tenant").

The Tenant shall pay monthly rent of $2,000 for the premises at 12 Main Street, Springfield.

Pets: The Tenant may keep one cat on the premises.
`

// leaseAnalyzer is a deterministic stand-in for the language model.
type leaseAnalyzer struct{}

func (leaseAnalyzer) Name() string { return "stub" }

func (leaseAnalyzer) Analyze(ctx context.Context, req *extraction.AnalyzeRequest) (*extraction.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &extraction.Analysis{
		Title:          "Residential Lease Agreement",
		DocType:        "lease",
		Jurisdiction:   "California",
		SimilarityTags: []string{"lease", "residential", "rental"},
		Candidates: []extraction.Candidate{
			{Variable: model.Variable{Key: "landlord_name", Label: "Landlord Name", Example: "John Smith"}, Confidence: 0.95},
			{Variable: model.Variable{Key: "tenant_name", Label: "Tenant Name", Example: "Jane Roe"}, Confidence: 0.95},
			{Variable: model.Variable{Key: "monthly_rent", Label: "Monthly Rent", Example: "$2,000", DType: model.DataTypeNumber}, Confidence: 0.9},
			{Variable: model.Variable{Key: "lease_start_date", Label: "Lease Start Date", Example: "January 5, 2024", DType: model.DataTypeDate}, Confidence: 0.9},
			{Variable: model.Variable{Key: "property_address", Label: "Property Address", Example: "12 Main Street, Springfield"}, Confidence: 0.85},
			{Variable: model.Variable{Key: "pet_clause", Label: "Pet Clause", Example: "The Tenant may keep one cat on the premises."}, Optional: true, Confidence: 0.6},
		},
	}, nil
}

type services struct {
	templates *TemplateService
	documents *DocumentService
	chat      *ChatService
}

func newServices(t *testing.T) *services {
	t.Helper()
	log := logger.Nop()
	templates := store.NewMemoryStore(log)
	engine := extraction.NewEngine(leaseAnalyzer{}, extraction.Options{}, log)
	return &services{
		templates: NewTemplateService(templates, conversation.NewMatcher(templates, conversation.DefaultMatchThreshold), log),
		documents: NewDocumentService(document.NewRegistry(), store.NewMemoryDocumentStore(), engine, 1024, log),
		chat:      NewChatService(templates, conversation.DefaultMatchThreshold, nil, log),
	}
}

func TestLeaseScenario(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	upload, err := svc.documents.Upload(ctx, "lease.txt", "text/plain", []byte(leaseDocument))
	require.NoError(t, err)
	assert.Equal(t, "uploaded", upload.Status)

	result, err := svc.documents.Extract(ctx, upload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Residential Lease Agreement", result.Template.Title)

	tenant, ok := result.Template.Variable("tenant_name")
	require.True(t, ok)
	assert.True(t, tenant.Required)
	pets, ok := result.Template.Variable("pet_clause")
	require.True(t, ok)
	assert.False(t, pets.Required)

	list, err := svc.templates.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "extraction never stores a template")

	id, err := svc.templates.Create(ctx, &result.Template)
	require.NoError(t, err)

	resp, err := svc.chat.Send(ctx, &model.ChatRequest{Message: "draft a lease agreement"})
	require.NoError(t, err)
	convID := resp.ConversationID
	conv, err := svc.chat.Conversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, id, conv.SelectedTemplateID)
	assert.Equal(t, model.StatusCollecting, conv.Status)

	resp, err = svc.chat.Send(ctx, &model.ChatRequest{ConversationID: convID, Message: "tenant_name: Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeText, resp.MessageType)
	conv, _ = svc.chat.Conversation(ctx, convID)
	assert.Equal(t, model.StatusCollecting, conv.Status)
	assert.Equal(t, "Jane Doe", conv.Bindings["tenant_name"])

	resp, err = svc.chat.Send(ctx, &model.ChatRequest{
		ConversationID: convID,
		Message: strings.Join([]string{
			"landlord_name: John Smith",
			"monthly_rent: 2,100",
			"lease_start_date: 2024-02-01",
			"property_address: 9 Elm Road, Springfield",
		}, "\n"),
	})
	require.NoError(t, err)
	conv, _ = svc.chat.Conversation(ctx, convID)
	assert.Equal(t, model.StatusReady, conv.Status)

	resp, err = svc.chat.Send(ctx, &model.ChatRequest{ConversationID: convID, Message: "/draft"})
	require.NoError(t, err)
	require.Equal(t, model.MessageTypeDraft, resp.MessageType)

	draft := resp.Data["draft_md"].(string)
	assert.Contains(t, draft, "Jane Doe")
	assert.Contains(t, draft, "9 Elm Road, Springfield")
	assert.Equal(t, 1, strings.Count(draft, "[[UNRESOLVED:"))
	assert.Contains(t, draft, render.UnresolvedMarker("pet_clause"))
	assert.Equal(t, []string{"pet_clause"}, resp.Data["unresolved"])
}

func TestTemplateServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	tpl := &model.Template{
		Title:          "Mutual Non-Disclosure Agreement",
		DocType:        "nda",
		SimilarityTags: []string{"nda"},
		Body:           "Between {{party_a}} and {{party_b}}.",
		Variables: []model.Variable{
			{Key: "party_a", Label: "First Party", Required: true},
			{Key: "party_b", Label: "Second Party", Required: true},
		},
	}
	id, err := svc.templates.Create(ctx, tpl)
	require.NoError(t, err)

	first, err := svc.templates.Export(ctx, id)
	require.NoError(t, err)
	second, err := svc.templates.Export(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.Markdown, second.Markdown)
	assert.Equal(t, id, first.TemplateID)

	matches, err := svc.templates.Match(ctx, "confidentiality agreement")
	require.NoError(t, err)
	require.NotEmpty(t, matches.Matches)
	assert.Equal(t, id, matches.Matches[0].TemplateID)
	assert.Equal(t, conversation.DefaultMatchThreshold, matches.Threshold)

	tpl.Title = "NDA"
	updated, err := svc.templates.Update(ctx, id, tpl)
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, "NDA", updated.Title)

	require.NoError(t, svc.templates.Delete(ctx, id))
	_, err = svc.templates.Get(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.templates.Export(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, svc.templates.Delete(ctx, id), model.ErrNotFound)

	_, err = svc.templates.Match(ctx, "  ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	tpl.Variables = append(tpl.Variables, model.Variable{Key: "party_a"})
	_, err = svc.templates.Create(ctx, tpl)
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)
}

// brokenStore fails every read with an unexpected error.
type brokenStore struct {
	store.TemplateStore
}

func (brokenStore) Get(context.Context, string) (*model.Template, error) {
	return nil, errors.New("bucket unavailable")
}

func TestTemplateServiceVariablesAndFailureLogs(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	id, err := svc.templates.Create(ctx, &model.Template{
		Title:     "Mutual NDA",
		Body:      "Between {{party_a}} and {{party_b}}.",
		Variables: []model.Variable{{Key: "party_a", Required: true}, {Key: "party_b"}},
	})
	require.NoError(t, err)

	vars, err := svc.templates.Variables(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, vars.TemplateID)
	assert.Equal(t, []string{"party_a", "party_b"}, []string{vars.Variables[0].Key, vars.Variables[1].Key})
	_, err = svc.templates.Variables(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	core, logs := observer.New(zapcore.ErrorLevel)
	broken := NewTemplateService(brokenStore{}, nil, &logger.Logger{Logger: zap.New(core)})
	_, err = broken.Variables(ctx, "tpl-9")
	require.Error(t, err)
	entries := logs.FilterMessage("template operation failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tpl-9", entries[0].ContextMap()["template_id"])
	assert.Equal(t, "get", entries[0].ContextMap()["operation"])
}

func TestDocumentServiceUploadErrors(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  error
	}{
		{"empty file", "a.txt", nil, model.ErrInvalidInput},
		{"missing filename", "", []byte("text"), model.ErrInvalidInput},
		{"too large", "a.txt", []byte(strings.Repeat("a", 2048)), model.ErrInvalidInput},
		{"unsupported type", "a.exe", []byte("MZ"), model.ErrUnsupportedFormat},
		{"blank text", "a.txt", []byte("   \n  "), model.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.documents.Upload(ctx, tt.filename, "", tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.documents.Extract(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.documents.Get(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDocumentServiceGet(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	upload, err := svc.documents.Upload(ctx, "../../etc/lease.md", "", []byte("# Lease\n\nTenant: Jane"))
	require.NoError(t, err)
	assert.Equal(t, "lease.md", upload.Filename)

	info, err := svc.documents.Get(ctx, upload.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", info.MimeType)
	assert.Positive(t, info.TextLength)
}

func TestChatServiceErrors(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)

	_, err := svc.chat.Send(ctx, &model.ChatRequest{Message: ""})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.chat.Send(ctx, &model.ChatRequest{ConversationID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	resp, err := svc.chat.Send(ctx, &model.ChatRequest{Message: "/frobnicate"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeError, resp.MessageType)
	assert.Equal(t, string(model.KindUnknownCommand), resp.Data["error"])

	resp, err = svc.chat.Send(ctx, &model.ChatRequest{ConversationID: resp.ConversationID, Message: "draft a lease"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageTypeError, resp.MessageType)
	assert.Equal(t, string(model.KindNoMatchingTemplate), resp.Data["error"])
}
