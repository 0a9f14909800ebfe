package handler

import (
	"net/http"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// Send handles POST /api/v1/chat/message
//
// Command failures are part of the conversation and come back as 200 with
// message_type "error". Only malformed requests and unknown conversations
// use error statuses.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateID("conversation", req.ConversationID); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}

	resp, err := h.service.Send(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
