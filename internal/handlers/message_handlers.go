package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"campus-chat/internal/auth"
	"campus-chat/internal/models"
	"campus-chat/internal/services"
	"campus-chat/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
	authService    *auth.Service
}

func NewMessageHandlers(messageService *services.MessageService, authService *auth.Service) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		authService:    authService,
	}
}

// GetHistory serves GET /groups/{id}/messages?page=&limit=.
func (h *MessageHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := groupIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)

	history, err := h.messageService.History(r.Context(), groupID, identity.UserID, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}

// SendMessage serves POST /groups/{id}/messages. The gateway broadcast is a
// side effect of the service's successful persist; a failed persist returns
// an error status and nothing is broadcast.
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := groupIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.Send(r.Context(), groupID, identity.UserID, &req)
	if err != nil {
		logger.Error("Send message error: %v", err)
		writeSendError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func writeSendError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrInvalidMessage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeServiceError(w, err)
}

func queryInt(r *http.Request, key string, def int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}
