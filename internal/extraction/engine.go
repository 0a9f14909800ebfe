package extraction

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
	"github.com/capitalize-ai/legal-drafting/pkg/tracing"
)

// minExampleLength keeps very short example values, such as "1" or "a",
// from being substituted all over the body.
const minExampleLength = 3

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Options configures an Engine.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// Timeout bounds a whole extraction run. Zero means no extra bound.
	Timeout time.Duration
}

// Engine runs an Analyzer over a document and assembles the candidate template.
type Engine struct {
	analyzer Analyzer
	opts     Options
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewEngine creates an extraction engine.
func NewEngine(analyzer Analyzer, opts Options, log *logger.Logger) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	return &Engine{
		analyzer: analyzer,
		opts:     opts,
		logger:   logger.OrGlobal(log).With(zap.String("component", "extraction")),
		tracer:   tracing.Tracer("extraction"),
	}
}

// AnalyzerName returns the name of the configured analyzer.
func (e *Engine) AnalyzerName() string {
	return e.analyzer.Name()
}

// Extract builds a candidate template from raw document text. It never
// returns a partial result and never persists anything.
func (e *Engine) Extract(ctx context.Context, text, filename string) (result *model.ExtractionResult, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "extraction.Extract", trace.WithAttributes(
		attribute.String("analyzer", e.analyzer.Name()),
		attribute.String("filename", filename),
		attribute.Int("text_length", len(text)),
	))
	defer func() {
		outcome := "success"
		vars := 0
		if err != nil {
			outcome = string(model.KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			vars = len(result.Template.Variables)
			span.SetAttributes(attribute.Int("variables", vars))
		}
		span.End()
		metrics.RecordExtraction(e.analyzer.Name(), outcome, time.Since(start).Seconds(), vars)
	}()

	if strings.TrimSpace(text) == "" {
		return nil, model.NewError(model.KindUnsupportedFormat, "document contains no text")
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	var (
		merged *mergedAnalysis
		chunks int
	)
	if keys := placeholderKeys(text); len(keys) > 0 {
		merged = fromPlaceholders(text, keys)
		chunks = 1
	} else {
		parts := Chunk(text, e.opts.ChunkSize, e.opts.ChunkOverlap)
		chunks = len(parts)
		merged, err = e.analyze(ctx, parts, filename)
		if err != nil {
			return nil, err
		}
		merged.body = substituteExamples(text, merged.candidates)
		e.dropUnplaced(merged)
	}

	if len(merged.candidates) == 0 {
		return nil, model.NewError(model.KindExtractionFailed, "no variables found in document")
	}

	result, err = e.assemble(merged, text, filename, chunks)
	if err != nil {
		return nil, err
	}

	e.logger.Info("extraction complete",
		zap.String("filename", filename),
		zap.Int("chunks", chunks),
		zap.Int("variables", len(result.Template.Variables)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (e *Engine) analyze(ctx context.Context, parts []string, filename string) (*mergedAnalysis, error) {
	merged := newMergedAnalysis()
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, model.WrapError(model.KindExtractionFailed, err, "extraction cancelled")
		}

		chunkCtx, span := e.tracer.Start(ctx, "extraction.AnalyzeChunk", trace.WithAttributes(
			attribute.Int("chunk", i),
			attribute.Int("chunk_length", len(part)),
		))
		analysis, err := e.analyzer.Analyze(chunkCtx, &AnalyzeRequest{
			Filename: filename,
			Chunk:    part,
			Index:    i,
			Total:    len(parts),
			Known:    merged.variables(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			e.logger.Warn("analyzer failed",
				zap.String("analyzer", e.analyzer.Name()),
				zap.Int("chunk", i),
				zap.Error(err),
			)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, model.WrapError(model.KindExtractionFailed, err, "extraction cancelled")
			}
			return nil, model.WrapError(model.KindExtractionFailed, err, "document analysis failed on chunk %d of %d", i+1, len(parts))
		}
		span.SetAttributes(attribute.Int("candidates", len(analysis.Candidates)))
		span.End()

		merged.add(analysis)
	}
	return merged, nil
}

// dropUnplaced removes candidates whose example never became a placeholder,
// so every variable of the result is referenced by its body.
func (e *Engine) dropUnplaced(m *mergedAnalysis) {
	placed := make(map[string]struct{})
	for _, key := range placeholderKeys(m.body) {
		placed[key] = struct{}{}
	}

	kept := m.candidates[:0]
	m.index = make(map[string]int, len(m.candidates))
	for _, c := range m.candidates {
		if _, ok := placed[c.Variable.Key]; !ok {
			e.logger.Debug("dropping variable without placeholder",
				zap.String("key", c.Variable.Key),
				zap.String("example", c.Variable.Example),
			)
			continue
		}
		m.index[c.Variable.Key] = len(kept)
		kept = append(kept, c)
	}
	m.candidates = kept
}

func (e *Engine) assemble(m *mergedAnalysis, text, filename string, chunks int) (*model.ExtractionResult, error) {
	title := m.title
	if title == "" {
		title = headingTitle(text)
	}
	if title == "" {
		title = filenameTitle(filename)
	}
	if title == "" {
		title = "Untitled Template"
	}

	docType := m.docType
	if docType == "" {
		docType = classifyDocType(text)
	}
	if docType == "" {
		docType = "legal_document"
	}
	jurisdiction := m.jurisdiction
	if jurisdiction == "" {
		jurisdiction = classifyJurisdiction(text)
	}

	description := m.description
	if description == "" && filename != "" {
		description = "Template extracted from " + filename
	}

	tags := m.tags
	if len(tags) == 0 {
		tags = similarityTags(docType, jurisdiction)
	}

	t := model.Template{
		Title:           title,
		FileDescription: description,
		DocType:         docType,
		Jurisdiction:    jurisdiction,
		SimilarityTags:  tags,
		Body:            m.body,
	}
	confidence := make([]model.VariableConfidence, 0, len(m.candidates))
	for _, c := range m.candidates {
		v := c.Variable
		v.Required = !c.Optional
		t.Variables = append(t.Variables, v)
		confidence = append(confidence, model.VariableConfidence{Key: v.Key, Confidence: c.Confidence})
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, model.WrapError(model.KindExtractionFailed, err, "analyzer produced an invalid template")
	}

	return &model.ExtractionResult{
		Template:   t,
		Confidence: confidence,
		Stats: model.ExtractionStats{
			TotalChunks:    chunks,
			VariablesFound: len(t.Variables),
			TagsFound:      len(t.SimilarityTags),
			TemplateLength: len(t.Body),
		},
	}, nil
}

// mergedAnalysis accumulates analyzer replies across chunks. The first
// occurrence of a key wins and order of discovery is kept.
type mergedAnalysis struct {
	title        string
	description  string
	docType      string
	jurisdiction string
	tags         []string
	candidates   []Candidate
	index        map[string]int
	body         string
}

func newMergedAnalysis() *mergedAnalysis {
	return &mergedAnalysis{index: make(map[string]int)}
}

func (m *mergedAnalysis) add(a *Analysis) {
	if a == nil {
		return
	}
	if m.title == "" {
		m.title = strings.TrimSpace(a.Title)
	}
	if m.description == "" {
		m.description = strings.TrimSpace(a.FileDescription)
	}
	if m.docType == "" {
		m.docType = model.KeyFromLabel(a.DocType)
	}
	if m.jurisdiction == "" {
		m.jurisdiction = strings.TrimSpace(a.Jurisdiction)
	}
	m.tags = dedupeTags(append(m.tags, a.SimilarityTags...))

	for _, c := range a.Candidates {
		c, ok := sanitize(c)
		if !ok {
			continue
		}
		if _, seen := m.index[c.Variable.Key]; seen {
			continue
		}
		m.index[c.Variable.Key] = len(m.candidates)
		m.candidates = append(m.candidates, c)
	}
}

func (m *mergedAnalysis) variables() []model.Variable {
	out := make([]model.Variable, len(m.candidates))
	for i, c := range m.candidates {
		out[i] = c.Variable
		out[i].Required = !c.Optional
	}
	return out
}

// sanitize normalizes a candidate's key and drops constraints that would
// make the template invalid.
func sanitize(c Candidate) (Candidate, bool) {
	v := &c.Variable
	key := model.KeyFromLabel(v.Key)
	if key == "" {
		key = model.KeyFromLabel(v.Label)
	}
	if key == "" {
		return c, false
	}
	v.Key = key
	v.Label = strings.TrimSpace(v.Label)
	v.Example = strings.TrimSpace(v.Example)

	switch v.DType {
	case model.DataTypeString, model.DataTypeNumber, model.DataTypeDate:
	case model.DataTypeEnum:
		if len(v.EnumValues) == 0 {
			v.DType = model.DataTypeString
		}
	default:
		v.DType = model.DataTypeString
	}
	if v.DType != model.DataTypeEnum {
		v.EnumValues = nil
	}
	if v.Pattern != "" {
		if _, err := regexp.Compile(v.Pattern); err != nil {
			v.Pattern = ""
		}
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		c.Confidence = 0.5
	}
	return c, true
}

func placeholderKeys(text string) []string {
	var keys []string
	seen := make(map[string]struct{})
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		keys = append(keys, m[1])
	}
	return keys
}

// fromPlaceholders builds the analysis for a document that is already a
// template.
func fromPlaceholders(text string, keys []string) *mergedAnalysis {
	m := newMergedAnalysis()
	for _, key := range keys {
		label := model.LabelFromKey(key)
		m.index[key] = len(m.candidates)
		m.candidates = append(m.candidates, Candidate{
			Variable: model.Variable{
				Key:         key,
				Label:       label,
				Description: fmt.Sprintf("Value for %s", strings.ToLower(label)),
				DType:       model.DataTypeString,
			},
			Confidence: 1.0,
		})
	}
	m.body = text
	return m
}

// substituteExamples replaces each candidate's example value with its
// placeholder, longest example first, never touching existing placeholders.
func substituteExamples(text string, candidates []Candidate) string {
	ordered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len([]rune(c.Variable.Example)) >= minExampleLength {
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Variable.Example) > len(ordered[j].Variable.Example)
	})

	body := text
	for _, c := range ordered {
		body = replaceOutsidePlaceholders(body, c.Variable.Example, "{{"+c.Variable.Key+"}}")
	}
	return body
}

// replaceOutsidePlaceholders replaces whole-word occurrences of old in the
// text between existing placeholders.
func replaceOutsidePlaceholders(body, old, replacement string) string {
	re := examplePattern(old)
	locs := placeholderPattern.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		return re.ReplaceAllLiteralString(body, replacement)
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(re.ReplaceAllLiteralString(body[prev:loc[0]], replacement))
		b.WriteString(body[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(re.ReplaceAllLiteralString(body[prev:], replacement))
	return b.String()
}

// examplePattern matches example literally. An edge that is a word
// character must also sit on a word boundary, so "Ann" leaves "Annual" alone.
func examplePattern(example string) *regexp.Regexp {
	pattern := regexp.QuoteMeta(example)
	if r, _ := utf8.DecodeRuneInString(example); isWordRune(r) {
		pattern = `\b` + pattern
	}
	if r, _ := utf8.DecodeLastRuneInString(example); isWordRune(r) {
		pattern += `\b`
	}
	return regexp.MustCompile(pattern)
}

// isWordRune reports whether r is an ASCII word character, the only kind
// RE2's \b understands.
func isWordRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}
