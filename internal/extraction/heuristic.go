package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

var (
	labeledLinePattern = regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Za-z .'/()&-]{1,60}?)[ \t]*:[ \t]*(\S[^\n]{0,200}?)[ \t]*$`)
	datePattern        = regexp.MustCompile(`\b(?:(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)
	moneyPattern       = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{2})?`)
	emailPattern       = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	partyPattern       = regexp.MustCompile(`\b[Bb]etween\s+([A-Z][^,()\n]{1,80}?)\s*(?:\((?:the\s+)?["“']?([A-Za-z]+)["”']?\))?\s*,?\s+and\s+([A-Z][^,()\n]{1,80}?)(?:\s*\((?:the\s+)?["“']?([A-Za-z]+)["”']?\)|\s*[,.;\n])`)
)

// contextKeys names dates and amounts by a keyword in the words just before
// them. The first matching keyword wins.
var (
	dateContext = []struct{ keyword, key string }{
		{"effective", "effective_date"},
		{"commenc", "start_date"},
		{"start", "start_date"},
		{"terminat", "end_date"},
		{"expir", "end_date"},
		{"end", "end_date"},
		{"sign", "signing_date"},
		{"execut", "signing_date"},
		{"due", "due_date"},
	}
	moneyContext = []struct{ keyword, key string }{
		{"rent", "rent_amount"},
		{"deposit", "deposit_amount"},
		{"salary", "salary_amount"},
		{"fee", "fee_amount"},
		{"price", "purchase_price"},
		{"loan", "loan_amount"},
		{"penalt", "penalty_amount"},
	}
)

const contextWindow = 40

// HeuristicAnalyzer finds variables with deterministic text rules. It needs
// no external service and always produces the same output for the same input.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates a heuristic analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Name implements Analyzer.
func (a *HeuristicAnalyzer) Name() string {
	return "heuristic"
}

// Analyze implements Analyzer.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, req *AnalyzeRequest) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := newFinder(req.Known)
	text := req.Chunk

	for _, m := range partyPattern.FindAllStringSubmatch(text, -1) {
		f.add(partyKey(m[2], "first_party_name"), m[1], model.DataTypeString, false, 0.8)
		f.add(partyKey(m[4], "second_party_name"), m[3], model.DataTypeString, false, 0.8)
	}

	for _, m := range labeledLinePattern.FindAllStringSubmatch(text, -1) {
		label, value := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if len(strings.Fields(label)) > 6 {
			continue
		}
		optional := strings.Contains(strings.ToLower(label), "optional")
		label = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(label, "(optional)", ""), "(Optional)", ""))
		dtype := model.DataTypeString
		switch {
		case datePattern.FindString(value) == value:
			dtype = model.DataTypeDate
		case moneyPattern.FindString(value) == value:
			dtype = model.DataTypeNumber
		}
		f.addLabeled(model.KeyFromLabel(label), label, value, dtype, optional, 0.9)
	}

	for _, loc := range datePattern.FindAllStringIndex(text, -1) {
		key := keyFromContext(text, loc[0], dateContext, "date")
		f.add(key, text[loc[0]:loc[1]], model.DataTypeDate, false, 0.7)
	}
	for _, loc := range moneyPattern.FindAllStringIndex(text, -1) {
		key := keyFromContext(text, loc[0], moneyContext, "amount")
		f.add(key, text[loc[0]:loc[1]], model.DataTypeNumber, false, 0.7)
	}
	for _, email := range emailPattern.FindAllString(text, -1) {
		f.add("email_address", email, model.DataTypeString, false, 0.7)
	}

	docType := classifyDocType(text)
	jurisdiction := classifyJurisdiction(text)
	title := ""
	if req.Index == 0 {
		title = headingTitle(text)
	}
	return &Analysis{
		Title:          title,
		DocType:        docType,
		Jurisdiction:   jurisdiction,
		SimilarityTags: similarityTags(docType, jurisdiction),
		Candidates:     f.candidates,
	}, nil
}

// finder collects candidates, reusing known keys for repeated values and
// numbering keys that are taken by a different value.
type finder struct {
	byExample  map[string]string
	taken      map[string]struct{}
	candidates []Candidate
}

func newFinder(known []model.Variable) *finder {
	f := &finder{
		byExample: make(map[string]string),
		taken:     make(map[string]struct{}),
	}
	for _, v := range known {
		f.taken[v.Key] = struct{}{}
		if v.Example != "" {
			f.byExample[v.Example] = v.Key
		}
	}
	return f
}

func (f *finder) add(key, example string, dtype model.DataType, optional bool, confidence float64) {
	f.addLabeled(key, model.LabelFromKey(key), example, dtype, optional, confidence)
}

func (f *finder) addLabeled(key, label, example string, dtype model.DataType, optional bool, confidence float64) {
	example = strings.TrimSpace(example)
	if key == "" || example == "" {
		return
	}
	if _, seen := f.byExample[example]; seen {
		return
	}
	key = f.unique(key)
	f.taken[key] = struct{}{}
	f.byExample[example] = key
	f.candidates = append(f.candidates, Candidate{
		Variable: model.Variable{
			Key:         key,
			Label:       label,
			Description: fmt.Sprintf("%s as it appears in the document", label),
			Example:     example,
			DType:       dtype,
		},
		Optional:   optional,
		Confidence: confidence,
	})
}

func (f *finder) unique(key string) string {
	if _, taken := f.taken[key]; !taken {
		return key
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", key, i)
		if _, taken := f.taken[candidate]; !taken {
			return candidate
		}
	}
}

func partyKey(role, fallback string) string {
	if role == "" {
		return fallback
	}
	return model.KeyFromLabel(role) + "_name"
}

func keyFromContext(text string, at int, table []struct{ keyword, key string }, fallback string) string {
	from := max(at-contextWindow, 0)
	before := strings.ToLower(text[from:at])
	for _, entry := range table {
		if strings.Contains(before, entry.keyword) {
			return entry.key
		}
	}
	return fallback
}
