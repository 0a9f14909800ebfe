package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/capitalize-ai/legal-drafting/internal/llm"
	"github.com/capitalize-ai/legal-drafting/internal/model"
)

const analyzerSystemPrompt = `You turn legal documents into reusable templates.

Identify every value that changes from one use of the document to the next:
party names, dates, amounts, addresses, reference numbers, contact details,
courts and venues, and optional clauses.

Rules:
- keys are snake_case (tenant_name, lease_start_date)
- reuse a key from the known variables when the field means the same thing
- "example" must be copied exactly as it appears in the text
- set "required" to false only for clauses or values the document can omit
- dtype is one of string, number, date, enum; enum needs enum_values
- "pattern" is an optional regular expression for structured values
- "confidence" is between 0 and 1

Reply with JSON only:
{
  "title": "Residential Lease Agreement",
  "file_description": "One sentence describing the document",
  "doc_type": "lease",
  "jurisdiction": "California",
  "similarity_tags": ["lease", "residential", "california"],
  "variables": [
    {
      "key": "tenant_name",
      "label": "Tenant Name",
      "description": "Full legal name of the tenant",
      "example": "Jane Doe",
      "required": true,
      "dtype": "string",
      "pattern": "",
      "enum_values": [],
      "confidence": 0.9
    }
  ]
}`

// LLMAnalyzer asks a language model to analyze each chunk.
type LLMAnalyzer struct {
	client    llm.Client
	model     string
	maxTokens int
}

// NewLLMAnalyzer creates an analyzer backed by client. An empty model uses
// the provider default.
func NewLLMAnalyzer(client llm.Client, model string) *LLMAnalyzer {
	return &LLMAnalyzer{client: client, model: model, maxTokens: 4096}
}

// Name implements Analyzer.
func (a *LLMAnalyzer) Name() string {
	return "llm"
}

type llmReply struct {
	Title           string        `json:"title"`
	FileDescription string        `json:"file_description"`
	DocType         string        `json:"doc_type"`
	Jurisdiction    string        `json:"jurisdiction"`
	SimilarityTags  []string      `json:"similarity_tags"`
	Variables       []llmVariable `json:"variables"`
}

type llmVariable struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Example     any      `json:"example"`
	Required    *bool    `json:"required"`
	DType       string   `json:"dtype"`
	Pattern     string   `json:"pattern"`
	Regex       string   `json:"regex"`
	EnumValues  []string `json:"enum_values"`
	Confidence  *float64 `json:"confidence"`
}

// Analyze implements Analyzer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	resp, err := a.client.Complete(ctx, &llm.CompletionRequest{
		Model:       a.model,
		System:      analyzerSystemPrompt,
		Messages:    []llm.ChatMessage{{Role: "user", Content: buildAnalyzePrompt(req)}},
		MaxTokens:   a.maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return parseLLMReply(resp.Content)
}

func buildAnalyzePrompt(req *AnalyzeRequest) string {
	var b strings.Builder
	if req.Filename != "" {
		fmt.Fprintf(&b, "File: %s\n", req.Filename)
	}
	fmt.Fprintf(&b, "Part %d of %d:\n\n%s\n", req.Index+1, req.Total, req.Chunk)
	if len(req.Known) > 0 {
		b.WriteString("\nKnown variables (reuse these keys):\n")
		for _, v := range req.Known {
			fmt.Fprintf(&b, "- %s: %s", v.Key, v.Label)
			if v.Example != "" {
				fmt.Fprintf(&b, " (e.g. %q)", v.Example)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func parseLLMReply(content string) (*Analysis, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, errors.New("reply contains no JSON object")
	}
	var reply llmReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("unparseable reply: %w", err)
	}

	analysis := &Analysis{
		Title:           reply.Title,
		FileDescription: reply.FileDescription,
		DocType:         reply.DocType,
		Jurisdiction:    reply.Jurisdiction,
		SimilarityTags:  reply.SimilarityTags,
	}
	for _, v := range reply.Variables {
		pattern := v.Pattern
		if pattern == "" {
			pattern = v.Regex
		}
		c := Candidate{
			Variable: model.Variable{
				Key:         v.Key,
				Label:       v.Label,
				Description: v.Description,
				Example:     exampleString(v.Example),
				DType:       model.DataType(strings.ToLower(v.DType)),
				Pattern:     pattern,
				EnumValues:  v.EnumValues,
			},
			Optional:   v.Required != nil && !*v.Required,
			Confidence: 0.8,
		}
		if v.Confidence != nil {
			c.Confidence = *v.Confidence
		}
		analysis.Candidates = append(analysis.Candidates, c)
	}
	return analysis, nil
}

// exampleString accepts examples the model emitted as numbers or booleans.
func exampleString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
