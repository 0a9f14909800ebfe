package store

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

const (
	frontMatterDelim = "---"
	variablesHeading = "## Variables"
)

// frontMatter is the YAML header of an exported template. Field order is
// fixed by the struct so identical templates export byte-identically.
type frontMatter struct {
	TemplateID      string           `yaml:"template_id"`
	Title           string           `yaml:"title"`
	FileDescription string           `yaml:"file_description,omitempty"`
	DocType         string           `yaml:"doc_type,omitempty"`
	Jurisdiction    string           `yaml:"jurisdiction,omitempty"`
	SimilarityTags  []string         `yaml:"similarity_tags"`
	CreatedAt       string           `yaml:"created_at,omitempty"`
	Variables       []model.Variable `yaml:"variables"`
}

// Export renders t as markdown with YAML front matter followed by the body
// and a variable table.
func Export(t *model.Template) (string, error) {
	fm := frontMatter{
		TemplateID:      t.ID,
		Title:           t.Title,
		FileDescription: t.FileDescription,
		DocType:         t.DocType,
		Jurisdiction:    t.Jurisdiction,
		SimilarityTags:  t.SimilarityTags,
		Variables:       t.Variables,
	}
	if fm.SimilarityTags == nil {
		fm.SimilarityTags = []string{}
	}
	if fm.Variables == nil {
		fm.Variables = []model.Variable{}
	}
	if !t.CreatedAt.IsZero() {
		fm.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	var header bytes.Buffer
	enc := yaml.NewEncoder(&header)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterDelim + "\n")
	b.Write(header.Bytes())
	b.WriteString(frontMatterDelim + "\n\n")
	b.WriteString(strings.TrimRight(t.Body, "\n"))
	b.WriteString("\n\n" + variablesHeading + "\n\n")
	b.WriteString("| Key | Label | Required | Type | Description | Example |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, v := range t.Variables {
		required := "no"
		if v.Required {
			required = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(v.Key), cell(v.Label), required, cell(string(v.DType)), cell(v.Description), cell(v.Example))
	}
	return b.String(), nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Import parses the output of Export back into a template. The variable
// table is informational; variables are read from the front matter. The id
// and creation time are carried over so callers can decide whether to keep
// them.
func Import(markdown string) (*model.Template, error) {
	text := strings.ReplaceAll(markdown, "\r\n", "\n")
	if !strings.HasPrefix(text, frontMatterDelim+"\n") {
		return nil, model.NewError(model.KindInvalidTemplate, "template markdown must start with front matter")
	}
	rest := text[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		return nil, model.NewError(model.KindInvalidTemplate, "unterminated front matter")
	}
	header := rest[:end+1]
	body := rest[end+len(frontMatterDelim)+2:]

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, model.WrapError(model.KindInvalidTemplate, err, "invalid front matter")
	}

	if i := strings.LastIndex(body, "\n"+variablesHeading+"\n"); i >= 0 {
		body = body[:i]
	}
	body = strings.Trim(body, "\n")

	t := &model.Template{
		ID:              fm.TemplateID,
		Title:           fm.Title,
		FileDescription: fm.FileDescription,
		DocType:         fm.DocType,
		Jurisdiction:    fm.Jurisdiction,
		SimilarityTags:  fm.SimilarityTags,
		Body:            body,
		Variables:       fm.Variables,
	}
	if fm.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, fm.CreatedAt)
		if err != nil {
			return nil, model.WrapError(model.KindInvalidTemplate, err, "invalid created_at %q", fm.CreatedAt)
		}
		t.CreatedAt = created
		t.UpdatedAt = created
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
