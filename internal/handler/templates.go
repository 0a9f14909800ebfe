package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/service"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// TemplateHandler handles template endpoints.
type TemplateHandler struct {
	service *service.TemplateService
	logger  *logger.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(svc *service.TemplateService, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: svc,
		logger:  logger.OrGlobal(log),
	}
}

// Create handles POST /api/v1/templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var t model.Template
	if err := decodeTemplate(w, r, &t); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	id, err := h.service.Create(r.Context(), &t)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.CreateTemplateResponse{ID: id})
}

// List handles GET /api/v1/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /api/v1/templates/{id}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Update handles PUT /api/v1/templates/{id}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}

	var t model.Template
	if err := decodeTemplate(w, r, &t); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	updated, err := h.service.Update(r.Context(), id, &t)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/templates/{id}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/templates/{id}/export
func (h *TemplateHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Export(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Variables handles GET /api/v1/templates/{id}/variables
func (h *TemplateHandler) Variables(w http.ResponseWriter, r *http.Request) {
	id, ok := h.templateID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Variables(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Match handles POST /api/v1/templates/match
func (h *TemplateHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req model.MatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Match(r.Context(), req.Query)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *TemplateHandler) templateID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID("template", id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return "", false
	}
	return id, true
}

// decodeTemplate decodes a template body. Struct validation failures on a
// template are reported as InvalidTemplate, like store validation.
func decodeTemplate(w http.ResponseWriter, r *http.Request, t *model.Template) error {
	if err := readJSON(w, r, t); err != nil {
		return err
	}
	if err := middleware.ValidateStruct(t); err != nil {
		return &model.Error{Kind: model.KindInvalidTemplate, Message: err.Error()}
	}
	return nil
}
