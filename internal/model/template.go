// Package model defines data structures for the drafting service.
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DataType is the kind of value a variable accepts.
type DataType string

const (
	DataTypeString DataType = "string"
	DataTypeNumber DataType = "number"
	DataTypeDate   DataType = "date"
	DataTypeEnum   DataType = "enum"
)

// Variable is one fillable slot in a template.
type Variable struct {
	Key         string   `json:"key" yaml:"key" validate:"required,max=128"`
	Label       string   `json:"label" yaml:"label" validate:"max=256"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Example     string   `json:"example,omitempty" yaml:"example,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	DType       DataType `json:"dtype,omitempty" yaml:"dtype,omitempty" validate:"omitempty,oneof=string number date enum"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	EnumValues  []string `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
}

// Template is a document skeleton plus the variables its placeholders refer to.
type Template struct {
	ID              string     `json:"id"`
	Title           string     `json:"title" validate:"required,max=256"`
	FileDescription string     `json:"file_description,omitempty"`
	DocType         string     `json:"doc_type,omitempty"`
	Jurisdiction    string     `json:"jurisdiction,omitempty"`
	SimilarityTags  []string   `json:"similarity_tags"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Body            string     `json:"body"`
	Variables       []Variable `json:"variables" validate:"dive"`
}

// TemplateSummary is the list view of a template.
type TemplateSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	DocType        string    `json:"doc_type,omitempty"`
	Jurisdiction   string    `json:"jurisdiction,omitempty"`
	SimilarityTags []string  `json:"similarity_tags"`
	VariableCount  int       `json:"variable_count"`
	CreatedAt      time.Time `json:"created_at"`
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Summary returns the list view of t.
func (t *Template) Summary() TemplateSummary {
	return TemplateSummary{
		ID:             t.ID,
		Title:          t.Title,
		DocType:        t.DocType,
		Jurisdiction:   t.Jurisdiction,
		SimilarityTags: append([]string(nil), t.SimilarityTags...),
		VariableCount:  len(t.Variables),
		CreatedAt:      t.CreatedAt,
	}
}

// Variable looks up a variable by key.
func (t *Template) Variable(key string) (Variable, bool) {
	for _, v := range t.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return Variable{}, false
}

// MissingRequired returns required keys without a non-empty binding, in template order.
func (t *Template) MissingRequired(bindings map[string]string) []string {
	var missing []string
	for _, v := range t.Variables {
		if v.Required && strings.TrimSpace(bindings[v.Key]) == "" {
			missing = append(missing, v.Key)
		}
	}
	return missing
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	c := *t
	c.SimilarityTags = append([]string(nil), t.SimilarityTags...)
	c.Variables = make([]Variable, len(t.Variables))
	for i, v := range t.Variables {
		v.EnumValues = append([]string(nil), v.EnumValues...)
		c.Variables[i] = v
	}
	return &c
}

// Validate checks structural invariants. Violations are InvalidTemplate errors.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return NewError(KindInvalidTemplate, "template title is required")
	}
	seen := make(map[string]struct{}, len(t.Variables))
	for i, v := range t.Variables {
		if v.Key == "" {
			return NewError(KindInvalidTemplate, "variable %d has an empty key", i)
		}
		if !keyPattern.MatchString(v.Key) {
			return NewError(KindInvalidTemplate, "variable key %q must contain only letters, digits and underscores", v.Key)
		}
		if _, dup := seen[v.Key]; dup {
			return &Error{
				Kind:    KindInvalidTemplate,
				Message: fmt.Sprintf("duplicate variable key %q", v.Key),
				Missing: []string{v.Key},
			}
		}
		seen[v.Key] = struct{}{}

		switch v.DType {
		case "", DataTypeString, DataTypeNumber, DataTypeDate:
		case DataTypeEnum:
			if len(v.EnumValues) == 0 {
				return NewError(KindInvalidTemplate, "enum variable %q has no enum values", v.Key)
			}
		default:
			return NewError(KindInvalidTemplate, "variable %q has unknown dtype %q", v.Key, v.DType)
		}
		if v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				return WrapError(KindInvalidTemplate, err, "variable %q has an invalid pattern", v.Key)
			}
		}
	}
	return nil
}

// Normalize fills defaulted fields in place.
func (t *Template) Normalize() {
	if t.SimilarityTags == nil {
		t.SimilarityTags = []string{}
	}
	if t.Variables == nil {
		t.Variables = []Variable{}
	}
	for i := range t.Variables {
		v := &t.Variables[i]
		v.Key = strings.TrimSpace(v.Key)
		if strings.TrimSpace(v.Label) == "" {
			v.Label = LabelFromKey(v.Key)
		}
		if v.DType == "" {
			v.DType = DataTypeString
		}
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// ValidateValue checks value against the variable's type, pattern and enum values.
func (v Variable) ValidateValue(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return NewError(KindInvalidInput, "%s cannot be empty", v.Label)
	}
	switch v.DType {
	case DataTypeNumber:
		cleaned := strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(value)
		if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
			return NewError(KindInvalidInput, "%s must be a number, got %q", v.Label, value)
		}
	case DataTypeDate:
		if !isDate(value) {
			return NewError(KindInvalidInput, "%s must be a date (for example 2024-01-31), got %q", v.Label, value)
		}
	case DataTypeEnum:
		ok := false
		for _, allowed := range v.EnumValues {
			if strings.EqualFold(allowed, value) {
				ok = true
				break
			}
		}
		if !ok {
			return NewError(KindInvalidInput, "%s must be one of: %s", v.Label, strings.Join(v.EnumValues, ", "))
		}
	}
	if v.Pattern != "" {
		re, err := regexp.Compile(v.Pattern)
		if err == nil && !re.MatchString(value) {
			return NewError(KindInvalidInput, "%s does not match the expected format", v.Label)
		}
	}
	return nil
}

func isDate(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// LabelFromKey turns a snake_case key into a Title Case label.
func LabelFromKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}

// KeyFromLabel turns free text into a snake_case variable key.
func KeyFromLabel(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CreateTemplateResponse is the reply to a template save.
type CreateTemplateResponse struct {
	ID string `json:"id"`
}

// ExportResponse carries the markdown export of a template.
type ExportResponse struct {
	TemplateID string `json:"template_id"`
	Markdown   string `json:"markdown"`
}

// VariablesResponse lists a template's variables in template order.
type VariablesResponse struct {
	TemplateID string     `json:"template_id"`
	Variables  []Variable `json:"variables"`
}

// MatchRequest is the body of POST /templates/match.
type MatchRequest struct {
	Query string `json:"query" validate:"required,max=1000"`
}

// MatchResponse lists templates ranked against a query.
type MatchResponse struct {
	Matches   []TemplateMatch `json:"matches"`
	Threshold float64         `json:"threshold"`
}
