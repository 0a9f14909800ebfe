package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// DefaultMatchThreshold is the minimum score for a template to be selected
// from free text.
const DefaultMatchThreshold = 0.5

// TemplateLister lists stored templates.
type TemplateLister interface {
	List(ctx context.Context) ([]model.TemplateSummary, error)
}

// Matcher ranks templates against a free-text request by weighted token
// overlap with the template's title, type, jurisdiction and tags.
type Matcher struct {
	templates TemplateLister
	threshold float64
}

// NewMatcher creates a matcher. A threshold outside (0, 1] uses the default.
func NewMatcher(templates TemplateLister, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return &Matcher{templates: templates, threshold: threshold}
}

// Threshold returns the minimum score for Best.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// maxSuggestions bounds the templates offered when nothing matches.
const maxSuggestions = 5

// Rank scores every template against query and returns those with a
// positive score, best first. Ties keep store order.
func (m *Matcher) Rank(ctx context.Context, query string) ([]model.TemplateMatch, error) {
	summaries, err := m.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	return rank(summaries, query), nil
}

// Best returns the top match, or NoMatchingTemplate when nothing reaches the
// threshold. The error carries the closest templates as candidates.
func (m *Matcher) Best(ctx context.Context, query string) (*model.TemplateMatch, error) {
	summaries, err := m.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	matches := rank(summaries, query)
	if len(matches) == 0 || matches[0].Score < m.threshold {
		return nil, noMatch(strings.TrimSpace(query), matches, summaries)
	}
	best := matches[0]
	return &best, nil
}

func rank(summaries []model.TemplateSummary, query string) []model.TemplateMatch {
	q := queryTokens(query)
	matches := make([]model.TemplateMatch, 0, len(summaries))
	for _, s := range summaries {
		if score := scoreTemplate(q, s); score > 0 {
			matches = append(matches, model.TemplateMatch{TemplateID: s.ID, Title: s.Title, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// noMatch builds the NoMatchingTemplate error. Its message lists the closest
// templates, or every stored template when none scored at all.
func noMatch(query string, matches []model.TemplateMatch, summaries []model.TemplateSummary) *model.Error {
	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't find a template matching %q.", query)

	if len(summaries) == 0 {
		b.WriteString(" No templates are stored yet. Upload a document to create one.")
		return &model.Error{Kind: model.KindNoMatchingTemplate, Message: b.String(), Candidates: []model.TemplateMatch{}}
	}

	listed := matches
	if len(listed) > 0 {
		b.WriteString(" The closest templates are:")
	} else {
		b.WriteString(" Available templates:")
		listed = make([]model.TemplateMatch, 0, len(summaries))
		for _, s := range summaries {
			listed = append(listed, model.TemplateMatch{TemplateID: s.ID, Title: s.Title})
		}
	}
	if len(listed) > maxSuggestions {
		listed = listed[:maxSuggestions]
	}
	for i, c := range listed {
		fmt.Fprintf(&b, "\n%d. %s (/draft %s)", i+1, c.Title, c.TemplateID)
	}
	b.WriteString("\nSend /draft <template id> to pick one, or upload a document to create a new template.")

	candidates := matches
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	return &model.Error{
		Kind:       model.KindNoMatchingTemplate,
		Message:    b.String(),
		Candidates: append([]model.TemplateMatch{}, candidates...),
	}
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {}, "to": {}, "of": {}, "in": {},
	"on": {}, "with": {}, "my": {}, "me": {}, "i": {}, "we": {}, "our": {}, "you": {}, "can": {},
	"please": {}, "need": {}, "want": {}, "would": {}, "like": {}, "some": {}, "new": {},
	"draft": {}, "create": {}, "write": {}, "make": {}, "generate": {}, "prepare": {}, "help": {},
	"document": {}, "template": {}, "form": {}, "up": {}, "is": {}, "be": {}, "it": {}, "this": {},
}

// genericWords match many templates and carry little weight.
var genericWords = map[string]float64{
	"agreement": 0.25,
	"contract":  0.25,
	"letter":    0.5,
	"notice":    0.5,
}

var synonyms = map[string]string{
	"rental":          "lease",
	"rent":            "lease",
	"tenancy":         "lease",
	"renting":         "lease",
	"nondisclosure":   "nda",
	"disclosure":      "nda",
	"confidentiality": "nda",
	"job":             "employment",
	"offer":           "employment",
	"hire":            "employment",
	"hiring":          "employment",
	"employee":        "employment",
	"purchase":        "sale",
	"buy":             "sale",
	"selling":         "sale",
	"contractor":      "service",
	"consulting":      "service",
	"services":        "service",
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		if canonical, ok := synonyms[f]; ok {
			f = canonical
		} else if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
			if canonical, ok := synonyms[f]; ok {
				f = canonical
			}
		}
		out = append(out, f)
	}
	return out
}

func queryTokens(query string) map[string]float64 {
	tokens := make(map[string]float64)
	for _, t := range tokenize(query) {
		w, ok := genericWords[t]
		if !ok {
			w = 1
		}
		tokens[t] = w
	}
	return tokens
}

// scoreTemplate returns the weighted share of query tokens found in the
// template's descriptive fields, in [0, 1].
func scoreTemplate(q map[string]float64, s model.TemplateSummary) float64 {
	if len(q) == 0 {
		return 0
	}
	fields := []string{s.Title, strings.ReplaceAll(s.DocType, "_", " "), s.Jurisdiction}
	fields = append(fields, s.SimilarityTags...)
	have := make(map[string]struct{})
	for _, f := range fields {
		for _, t := range tokenize(f) {
			have[t] = struct{}{}
		}
	}

	var total, matched float64
	for t, w := range q {
		total += w
		if _, ok := have[t]; ok {
			matched += w
		}
	}
	// Queries made only of generic words never score a full match.
	if total < 1 {
		total = 1
	}
	return matched / total
}
