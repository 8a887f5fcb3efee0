// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

package api

import (
	"errors"
	"net/http"

	"github.com/dhanush6701/kubepulse/internal/assistant"
)

// AssistantChatRequest is the body for POST /api/v1/assistant/chat.
type AssistantChatRequest struct {
	Message string         `json:"message" validate:"required,max=4000"`
	Context map[string]any `json:"context"`
}

// AssistantChat forwards a question to the AI assistant.
func (h *Handlers) AssistantChat(w http.ResponseWriter, r *http.Request) {
	if !h.assistant.Configured() {
		respondError(w, http.StatusServiceUnavailable, "ASSISTANT_NOT_CONFIGURED",
			"Assistant not configured. Missing API key.", nil)
		return
	}

	var req AssistantChatRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	reply, err := h.assistant.Chat(r.Context(), req.Message, req.Context)
	if err != nil {
		if errors.Is(err, assistant.ErrNotConfigured) {
			respondError(w, http.StatusServiceUnavailable, "ASSISTANT_NOT_CONFIGURED",
				"Assistant not configured. Missing API key.", nil)
			return
		}
		respondError(w, http.StatusBadGateway, "ASSISTANT_ERROR",
			"assistant backend failed", err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"reply": reply})
}
