// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/internal/service"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger.OrGlobal(log),
	}
}

// Conversation handles GET /api/v1/chat/conversations/{id}
func (h *ChatHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	conv, err := h.service.Conversation(r.Context(), conversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
