// Package extraction turns raw document text into candidate templates.
package extraction

import (
	"context"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// Analyzer is the document-understanding capability. It proposes variables
// and classification metadata for one chunk of text.
type Analyzer interface {
	// Name identifies the analyzer in logs and metrics.
	Name() string

	// Analyze inspects one chunk. Known lists the variables found in earlier
	// chunks so the analyzer can reuse their keys.
	Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error)
}

// AnalyzeRequest is the input for one chunk.
type AnalyzeRequest struct {
	Filename string
	Chunk    string
	Index    int
	Total    int
	Known    []model.Variable
}

// Candidate is a variable proposed by an analyzer.
type Candidate struct {
	Variable model.Variable
	// Optional marks a variable the document does not strictly need.
	// Candidates are required unless Optional is set.
	Optional   bool
	Confidence float64
}

// Analysis is an analyzer's reply for one chunk.
type Analysis struct {
	Title           string
	FileDescription string
	DocType         string
	Jurisdiction    string
	SimilarityTags  []string
	Candidates      []Candidate
}
