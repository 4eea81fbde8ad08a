package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/creatordesk/creatordesk/internal/assistant"
	"github.com/creatordesk/creatordesk/internal/logging"
)

type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleAssistantChat proxies a conversation to the assistant. Returns 503
// when the feature is not configured.
func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	if !s.chat.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "assistant is not configured on this deployment",
			Code:  "AST001",
		})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		badRequest(w, "messages must not be empty")
		return
	}

	reply, err := s.chat.Chat(r.Context(), req.Messages)
	if errors.Is(err, assistant.ErrDisabled) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "assistant is not configured on this deployment",
			Code:  "AST001",
		})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("assistant reply", "chars", len(reply))
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
