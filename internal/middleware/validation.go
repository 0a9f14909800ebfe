package middleware

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// MaxIDLength bounds path identifiers.
const MaxIDLength = 128

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks the validate tags of a request body. Failures are
// InvalidInput errors naming each offending field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.WrapError(model.KindInvalidInput, err, "invalid request")
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	return model.NewError(model.KindInvalidInput, "invalid request: %s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s exceeds maximum length %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// ValidateMessageContent validates chat message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return model.NewError(model.KindInvalidInput, "message cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return model.NewError(model.KindInvalidInput, "message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return model.NewError(model.KindInvalidInput, "message must be valid UTF-8")
	}
	return nil
}

// ValidateID validates an opaque identifier taken from a URL path.
func ValidateID(kind, id string) error {
	if id == "" {
		return model.NewError(model.KindInvalidInput, "%s ID is required", kind)
	}
	if len(id) > MaxIDLength {
		return model.NewError(model.KindInvalidInput, "%s ID exceeds maximum length", kind)
	}
	if !utf8.ValidString(id) {
		return model.NewError(model.KindInvalidInput, "%s ID must be valid UTF-8", kind)
	}
	return nil
}
