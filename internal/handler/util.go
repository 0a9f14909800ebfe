package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// maxJSONBody bounds JSON request bodies. Uploads have their own limit.
const maxJSONBody = 4 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps err to a status code and writes it. Failures
// outside the error taxonomy are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	e, ok := model.AsError(err)
	status := statusForError(err)
	if !ok || status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.String("kind", string(model.KindOf(err))),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	msg := e.Message
	if msg == "" {
		msg = e.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: string(e.Kind), Missing: e.Missing})
}

// statusForError maps an error kind to an HTTP status.
func statusForError(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidInput, model.KindUnknownCommand:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case model.KindExtractionFailed:
		return http.StatusBadGateway
	case model.KindInvalidTemplate, model.KindUnknownVariable,
		model.KindMissingRequiredVariables, model.KindNoMatchingTemplate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := readJSON(w, r, v); err != nil {
		return err
	}
	return middleware.ValidateStruct(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return model.NewError(model.KindInvalidInput, "request body too large")
		case errors.Is(err, io.EOF):
			return model.NewError(model.KindInvalidInput, "request body is required")
		default:
			return model.WrapError(model.KindInvalidInput, err, "invalid request body")
		}
	}
	return nil
}
