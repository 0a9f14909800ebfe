package conversation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// keyLike matches the left side of "key: value" when it plausibly names a
// variable: a key or a short label.
var keyLike = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ '-]{0,63}$`)

// keyShaped matches names written like variable keys: snake_case with at
// least one underscore.
var keyShaped = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(?:_[A-Za-z0-9]+)+$`)

// assignment is one "key: value" pair as the user wrote it.
type assignment struct {
	name  string
	value string
}

// parseAssignments splits text into assignments, one per line or separated
// by ';'. The separator is the first ':' or '='. It returns nil when no
// segment looks like an assignment, and ok=false when some segments do and
// others do not.
func parseAssignments(text string) (out []assignment, ok bool) {
	var segments []string
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range strings.Split(line, ";") {
			if seg = strings.TrimSpace(seg); seg != "" {
				segments = append(segments, seg)
			}
		}
	}

	malformed := 0
	for _, seg := range segments {
		i := strings.IndexAny(seg, ":=")
		if i <= 0 {
			malformed++
			continue
		}
		name := strings.TrimSpace(seg[:i])
		if !keyLike.MatchString(name) || len(strings.Fields(name)) > 6 {
			malformed++
			continue
		}
		out = append(out, assignment{name: name, value: strings.TrimSpace(seg[i+1:])})
	}
	if len(out) == 0 {
		return nil, true
	}
	return out, malformed == 0
}

// meantAsAssignments reports whether at least one name resolves to a
// variable of t or is written like a key. When none does, the colons belong
// to a prose answer such as a URL, a time or a note.
func meantAsAssignments(t *model.Template, assignments []assignment) bool {
	for _, a := range assignments {
		if keyShaped.MatchString(a.name) {
			return true
		}
		if _, ok := resolveKey(t, a.name); ok {
			return true
		}
	}
	return false
}

// resolveKey finds the variable a user-written name refers to: the exact
// key, the key ignoring case, the snake_case form of the name, or the label.
func resolveKey(t *model.Template, name string) (model.Variable, bool) {
	if v, ok := t.Variable(name); ok {
		return v, true
	}
	normalized := model.KeyFromLabel(name)
	for _, v := range t.Variables {
		if strings.EqualFold(v.Key, name) || strings.EqualFold(v.Key, normalized) || strings.EqualFold(v.Label, strings.TrimSpace(name)) {
			return v, true
		}
	}
	return model.Variable{}, false
}

// bindAll validates every assignment against t and returns the resulting
// key/value pairs. Nothing is returned unless every assignment is valid.
func bindAll(t *model.Template, assignments []assignment) (map[string]string, error) {
	resolved := make(map[string]string, len(assignments))
	var unknown []string
	var invalid []string
	var firstInvalid error

	for _, a := range assignments {
		v, ok := resolveKey(t, a.name)
		if !ok {
			unknown = append(unknown, a.name)
			continue
		}
		if err := v.ValidateValue(a.value); err != nil {
			invalid = append(invalid, v.Key)
			if firstInvalid == nil {
				firstInvalid = err
			}
			continue
		}
		resolved[v.Key] = strings.TrimSpace(a.value)
	}

	if len(unknown) > 0 {
		return nil, &model.Error{
			Kind: model.KindUnknownVariable,
			Message: "I don't know the variable " + quoteList(unknown) +
				". Available variables: " + strings.Join(variableKeys(t), ", ") + ". Nothing was saved.",
			Missing: unknown,
		}
	}
	if len(invalid) > 0 {
		e, _ := model.AsError(firstInvalid)
		msg := firstInvalid.Error()
		if e != nil {
			msg = e.Message
		}
		return nil, &model.Error{
			Kind:    model.KindInvalidInput,
			Message: msg + ". Nothing was saved.",
			Missing: invalid,
		}
	}
	return resolved, nil
}

// pendingVariable is the variable free text without assignments answers:
// the first missing required one, else the first unbound optional one.
func pendingVariable(t *model.Template, bindings map[string]string) (model.Variable, bool) {
	if missing := t.MissingRequired(bindings); len(missing) > 0 {
		return t.Variable(missing[0])
	}
	for _, v := range t.Variables {
		if strings.TrimSpace(bindings[v.Key]) == "" {
			return v, true
		}
	}
	return model.Variable{}, false
}

func variableKeys(t *model.Template) []string {
	keys := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		keys[i] = v.Key
	}
	return keys
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "\"" + s + "\""
	}
	return strings.Join(quoted, ", ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
