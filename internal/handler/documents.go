package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/service"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// multipartOverhead allows for form boundaries and headers around the file.
const multipartOverhead = 1 << 20

// DocumentHandler handles document upload and extraction endpoints.
type DocumentHandler struct {
	service *service.DocumentService
	logger  *logger.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(svc *service.DocumentService, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: svc,
		logger:  logger.OrGlobal(log),
	}
}

// Upload handles POST /api/v1/documents/upload (multipart field "file").
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.service.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, h.logger, model.NewError(model.KindInvalidInput, "file exceeds the maximum size of %d bytes", limit))
			return
		}
		writeServiceError(w, r, h.logger, model.WrapError(model.KindInvalidInput, err, "expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, h.logger, model.NewError(model.KindInvalidInput, "file field is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeServiceError(w, r, h.logger, model.WrapError(model.KindInvalidInput, err, "failed to read upload"))
		return
	}

	resp, err := h.service.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/v1/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID("document", id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	info, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Extract handles POST /api/v1/documents/{id}/extract
func (h *DocumentHandler) Extract(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID("document", id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Extract(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
