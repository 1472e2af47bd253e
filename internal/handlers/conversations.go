package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// ConversationListResponse represents the conversation list response.
type ConversationListResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	Active        *uuid.UUID            `json:"active,omitempty"`
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	MatchID string `json:"match_id"`
}

// CreateConversationResponse represents the create conversation response.
type CreateConversationResponse struct {
	ID string `json:"id"`
}

// ReadResponse reports a conversation's unread count after an operation.
type ReadResponse struct {
	ID          string `json:"id"`
	UnreadCount int    `json:"unread_count"`
}

// ListConversations returns the cached conversations, newest first.
// With ?refresh=1 the cache is reloaded from the remote source first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	if wantsRefresh(r) {
		if err := h.chat.FetchConversations(r.Context()); err != nil {
			h.RemoteError(w, r, err)
			return
		}
	}

	resp := ConversationListResponse{Conversations: h.chat.Conversations()}
	if active := h.chat.Active(); active != uuid.Nil {
		resp.Active = &active
	}
	h.JSON(w, http.StatusOK, resp)
}

// CreateConversation returns the conversation for a match, creating it if needed.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid match ID format")
		return
	}

	id, err := h.chat.CreateConversation(r.Context(), matchID)
	if err != nil {
		h.RemoteError(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, CreateConversationResponse{ID: id.String()})
}

// MarkRead marks the other user's messages in a conversation read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	if err := h.chat.MarkRead(r.Context(), id); err != nil {
		h.RemoteError(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, ReadResponse{ID: id.String(), UnreadCount: h.chat.UnreadCount(id)})
}

// OpenConversation makes a conversation the one on screen.
func (h *Handler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	if err := h.chat.Open(r.Context(), id); err != nil {
		h.RemoteError(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{
		ConversationID: id.String(),
		Messages:       h.chat.Messages(id),
	})
}

// CloseConversation leaves a conversation.
func (h *Handler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	h.chat.Close(id)
	w.WriteHeader(http.StatusNoContent)
}
