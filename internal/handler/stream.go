package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/middleware"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// heartbeatInterval keeps idle proxies from closing history streams.
var heartbeatInterval = 30 * time.Second

// ReplayCompleteEvent marks the end of the history backlog.
type ReplayCompleteEvent struct {
	NextIndex    int `json:"next_index"`
	MessageCount int `json:"message_count"`
}

// Stream handles GET /api/v1/chat/conversations/{id}/stream
//
// It replays history after ?after=N, then pushes every new message until
// the client disconnects. A dropped stream can resume from the last index
// the client saw.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateID("conversation", conversationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	after := 0
	if v := r.URL.Query().Get("after"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			after = n
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.service.Subscribe(conversationID, after)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	metrics.SSEConnections.Inc()
	defer metrics.SSEConnections.Dec()

	log := h.logger.WithConversation(conversationID)
	index := sub.Start
	for _, msg := range sub.Backlog {
		if err := sendSSEEvent(w, flusher, "message", msg); err != nil {
			return
		}
		index++
	}
	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		NextIndex:    index,
		MessageCount: len(sub.Backlog),
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("history stream closed by client", zap.Int("next_index", index))
			return

		case msg, ok := <-sub.Live:
			if !ok {
				sendSSEEvent(w, flusher, "resync", &ReplayCompleteEvent{NextIndex: index})
				return
			}
			if err := sendSSEEvent(w, flusher, "message", msg); err != nil {
				return
			}
			index++

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", map[string]time.Time{"timestamp": time.Now().UTC()})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
