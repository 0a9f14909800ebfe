package extraction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

const leaseText = `RESIDENTIAL LEASE AGREEMENT

This Residential Lease Agreement is made on January 5, 2024 between John Smith ("Landlord") and Jane Doe ("Tenant").

The Tenant shall pay monthly rent of $2,000 for the premises at 12 Main Street, Springfield.

Pets: The Tenant may keep one cat on the premises.

This lease is governed by the laws of the State of California.`

// stubAnalyzer replays a fixed analysis per chunk index and records requests.
type stubAnalyzer struct {
	mu       sync.Mutex
	replies  []*Analysis
	err      error
	requests []*AnalyzeRequest
}

func (s *stubAnalyzer) Name() string { return "stub" }

func (s *stubAnalyzer) Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &Analysis{}, nil
	}
	idx := min(req.Index, len(s.replies)-1)
	return s.replies[idx], nil
}

func leaseAnalysis() *Analysis {
	return &Analysis{
		Title:          "Residential Lease Agreement",
		DocType:        "Lease",
		Jurisdiction:   "California",
		SimilarityTags: []string{"Lease", "residential", "rental"},
		Candidates: []Candidate{
			{Variable: model.Variable{Key: "landlord_name", Label: "Landlord Name", Example: "John Smith"}, Confidence: 0.95},
			{Variable: model.Variable{Key: "tenant_name", Label: "Tenant Name", Example: "Jane Doe"}, Confidence: 0.95},
			{Variable: model.Variable{Key: "monthly_rent", Label: "Monthly Rent", Example: "$2,000", DType: model.DataTypeNumber}, Confidence: 0.9},
			{Variable: model.Variable{Key: "lease_start_date", Label: "Lease Start Date", Example: "January 5, 2024", DType: model.DataTypeDate}, Confidence: 0.9},
			{Variable: model.Variable{Key: "property_address", Label: "Property Address", Example: "12 Main Street, Springfield"}, Confidence: 0.85},
			{Variable: model.Variable{Key: "pet_clause", Label: "Pet Clause", Example: "The Tenant may keep one cat on the premises."}, Optional: true, Confidence: 0.6},
		},
	}
}

// assertPlaceholdersCover checks that every variable of tpl is referenced by
// a placeholder in its body.
func assertPlaceholdersCover(t *testing.T, tpl *model.Template) {
	t.Helper()
	placed := placeholderKeys(tpl.Body)
	for _, v := range tpl.Variables {
		assert.Contains(t, placed, v.Key, "variable %s has no placeholder", v.Key)
	}
}

func newTestEngine(a Analyzer, opts Options) *Engine {
	return NewEngine(a, opts, logger.Nop())
}

func TestExtractLeaseDocument(t *testing.T) {
	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{leaseAnalysis()}}, Options{})

	result, err := e.Extract(context.Background(), leaseText, "lease.docx")
	require.NoError(t, err)

	tmpl := result.Template
	assert.Equal(t, "Residential Lease Agreement", tmpl.Title)
	assert.Equal(t, "lease", tmpl.DocType)
	assert.Equal(t, "California", tmpl.Jurisdiction)
	assert.Equal(t, []string{"lease", "residential", "rental"}, tmpl.SimilarityTags)
	assert.Equal(t, "Template extracted from lease.docx", tmpl.FileDescription)
	assert.Empty(t, tmpl.ID, "extraction never assigns ids")

	tenant, ok := tmpl.Variable("tenant_name")
	require.True(t, ok)
	assert.True(t, tenant.Required)
	pet, ok := tmpl.Variable("pet_clause")
	require.True(t, ok)
	assert.False(t, pet.Required)

	assert.Contains(t, tmpl.Body, "between {{landlord_name}} (\"Landlord\") and {{tenant_name}} (\"Tenant\")")
	assert.Contains(t, tmpl.Body, "monthly rent of {{monthly_rent}} for the premises at {{property_address}}.")
	assert.Contains(t, tmpl.Body, "Pets: {{pet_clause}}")
	assert.NotContains(t, tmpl.Body, "Jane Doe")

	require.Len(t, result.Confidence, 6)
	assert.Equal(t, "landlord_name", result.Confidence[0].Key)
	assert.Equal(t, 0.95, result.Confidence[0].Confidence)

	assertPlaceholdersCover(t, &tmpl)

	assert.Equal(t, model.ExtractionStats{
		TotalChunks:    1,
		VariablesFound: 6,
		TagsFound:      3,
		TemplateLength: len(tmpl.Body),
	}, result.Stats)
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{leaseAnalysis()}}, Options{})

	first, err := e.Extract(context.Background(), leaseText, "lease.docx")
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), leaseText, "lease.docx")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractExistingPlaceholders(t *testing.T) {
	analyzer := &stubAnalyzer{}
	e := newTestEngine(analyzer, Options{})

	text := "# Mutual NDA\n\nThis agreement between {{party_a}} and {{ party_b }} starts {{effective_date}}. {{party_a}} agrees."
	result, err := e.Extract(context.Background(), text, "nda.md")
	require.NoError(t, err)

	assert.Empty(t, analyzer.requests, "placeholders are read without the analyzer")
	assert.Equal(t, "Mutual NDA", result.Template.Title)
	assert.Equal(t, text, result.Template.Body)
	require.Len(t, result.Template.Variables, 3)
	assert.Equal(t, "party_a", result.Template.Variables[0].Key)
	assert.Equal(t, "Party A", result.Template.Variables[0].Label)
	assert.Equal(t, "party_b", result.Template.Variables[1].Key)
	for _, v := range result.Template.Variables {
		assert.True(t, v.Required)
	}
	for _, c := range result.Confidence {
		assert.Equal(t, 1.0, c.Confidence)
	}
}

func TestExtractMergesChunks(t *testing.T) {
	first := &Analysis{
		SimilarityTags: []string{"nda"},
		Candidates: []Candidate{
			{Variable: model.Variable{Key: "Disclosing Party", Example: "Acme Corp"}},
			{Variable: model.Variable{Key: "effective_date", Example: "2024-01-01", DType: model.DataTypeDate}},
		},
	}
	second := &Analysis{
		SimilarityTags: []string{"NDA", "confidentiality"},
		Candidates: []Candidate{
			{Variable: model.Variable{Key: "disclosing_party", Example: "Other Corp"}},
			{Variable: model.Variable{Key: "receiving_party", Example: "Beta LLC"}},
			{Variable: model.Variable{Key: "", Label: ""}},
		},
	}
	analyzer := &stubAnalyzer{replies: []*Analysis{first, second}}
	e := newTestEngine(analyzer, Options{ChunkSize: 600, ChunkOverlap: 50})

	text := "Acme Corp discloses to Beta LLC from 2024-01-01. " + strings.Repeat("Confidential information stays confidential. ", 30)
	result, err := e.Extract(context.Background(), text, "")
	require.NoError(t, err)

	require.Greater(t, result.Stats.TotalChunks, 1)
	assert.Len(t, analyzer.requests, result.Stats.TotalChunks)
	assert.Len(t, analyzer.requests[1].Known, 2, "later chunks see earlier variables")

	keys := make([]string, 0, len(result.Template.Variables))
	for _, v := range result.Template.Variables {
		keys = append(keys, v.Key)
	}
	assert.Equal(t, []string{"disclosing_party", "effective_date", "receiving_party"}, keys)
	assert.Equal(t, "Acme Corp", result.Template.Variables[0].Example, "first occurrence wins")
	assert.Equal(t, []string{"nda", "confidentiality"}, result.Template.SimilarityTags)
	assert.Equal(t, "nda", result.Template.DocType)
	assert.Equal(t, "Untitled Template", result.Template.Title)
	assert.True(t, strings.HasPrefix(result.Template.Body, "{{disclosing_party}} discloses to {{receiving_party}} from {{effective_date}}."))
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *stubAnalyzer
		text     string
		wantKind model.ErrorKind
	}{
		{
			name:     "empty text",
			analyzer: &stubAnalyzer{},
			text:     "  \n\t",
			wantKind: model.KindUnsupportedFormat,
		},
		{
			name:     "analyzer error",
			analyzer: &stubAnalyzer{err: errors.New("model unavailable")},
			text:     leaseText,
			wantKind: model.KindExtractionFailed,
		},
		{
			name:     "no variables",
			analyzer: &stubAnalyzer{replies: []*Analysis{{Title: "Nothing here"}}},
			text:     leaseText,
			wantKind: model.KindExtractionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(tt.analyzer, Options{})
			result, err := e.Extract(context.Background(), tt.text, "lease.txt")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantKind, model.KindOf(err))
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{leaseAnalysis()}}, Options{})
	result, err := e.Extract(ctx, leaseText, "lease.txt")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrExtractionFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractSanitizesCandidates(t *testing.T) {
	analysis := &Analysis{Candidates: []Candidate{
		{Variable: model.Variable{Key: "status", DType: model.DataTypeEnum, Example: "pending"}, Confidence: 3},
		{Variable: model.Variable{Key: "code", DType: "uuid", Pattern: "([", Example: "A-12"}},
	}}
	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{analysis}}, Options{})

	result, err := e.Extract(context.Background(), "Status pending, code A-12.", "form.txt")
	require.NoError(t, err)

	status, _ := result.Template.Variable("status")
	assert.Equal(t, model.DataTypeString, status.DType)
	code, _ := result.Template.Variable("code")
	assert.Equal(t, model.DataTypeString, code.DType)
	assert.Empty(t, code.Pattern)
	assert.Equal(t, 0.5, result.Confidence[0].Confidence)
	assert.Equal(t, "Form", result.Template.Title)
}

func TestSubstituteExamplesSkipsPlaceholders(t *testing.T) {
	body := substituteExamples("Jane Doe, tenant, signs as Jane.", []Candidate{
		{Variable: model.Variable{Key: "tenant_name", Example: "Jane Doe"}},
		{Variable: model.Variable{Key: "tenant", Example: "tenant"}},
		{Variable: model.Variable{Key: "x", Example: "Ja"}},
	})
	assert.Equal(t, "{{tenant_name}}, {{tenant}}, signs as Jane.", body)
}

func TestExtractDropsVariablesWithoutPlaceholder(t *testing.T) {
	analysis := &Analysis{Candidates: []Candidate{
		{Variable: model.Variable{Key: "rent", Example: "$2,000 per month"}},
		{Variable: model.Variable{Key: "rent_amount", Example: "$2,000", DType: model.DataTypeNumber}},
		{Variable: model.Variable{Key: "guarantor", Example: "Nobody Here"}},
		{Variable: model.Variable{Key: "floor", Example: "2"}},
	}}
	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{analysis}}, Options{})

	result, err := e.Extract(context.Background(), "Rent: $2,000 per month", "rent.txt")
	require.NoError(t, err)

	assert.Equal(t, "Rent: {{rent}}", result.Template.Body)
	require.Len(t, result.Template.Variables, 1)
	assert.Equal(t, "rent", result.Template.Variables[0].Key)
	require.Len(t, result.Confidence, 1)
	assert.Equal(t, 1, result.Stats.VariablesFound)
	assertPlaceholdersCover(t, &result.Template)
}

func TestExtractFailsWhenNoExampleIsPlaced(t *testing.T) {
	analysis := &Analysis{Candidates: []Candidate{
		{Variable: model.Variable{Key: "guarantor", Example: "Nobody Here"}},
	}}
	e := newTestEngine(&stubAnalyzer{replies: []*Analysis{analysis}}, Options{})

	result, err := e.Extract(context.Background(), leaseText, "lease.txt")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrExtractionFailed)
}

func TestHeuristicExtractionCoversEveryVariable(t *testing.T) {
	e := newTestEngine(NewHeuristicAnalyzer(), Options{})

	for _, text := range []string{
		"Rent: $2,000 per month",
		leaseText,
		"Name: Ann\nEmail: ann@example.com\n\nAnnual fee of $300 is due on 2024-06-01.",
	} {
		result, err := e.Extract(context.Background(), text, "form.txt")
		require.NoError(t, err)
		assertPlaceholdersCover(t, &result.Template)
	}
}

func TestSubstituteExamplesMatchesWholeWords(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		example string
		want    string
	}{
		{"word inside word", "Name: Ann. Annual review by Ann.", "Ann", "Name: {{name}}. Annual review by {{name}}."},
		{"currency edge", "Pay $300 or $3000.", "$300", "Pay {{name}} or $3000."},
		{"trailing punctuation", "Signed (Ann). Annex A.", "(Ann)", "Signed {{name}}. Annex A."},
		{"regexp metacharacters", "Fee 1.5% not 105%.", "1.5%", "Fee {{name}} not 105%."},
		{"non ascii edge", "Café Zoë and Zoëlle", "Zoë", "Café {{name}} and {{name}}lle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := substituteExamples(tt.text, []Candidate{{Variable: model.Variable{Key: "name", Example: tt.example}}})
			assert.Equal(t, tt.want, body)
		})
	}
}
