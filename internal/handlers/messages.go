package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/manyajain27/dating-app-sub000/internal/models"
)

// MessageListResponse represents a conversation's messages.
type MessageListResponse struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Content     string `json:"content"`
	ImageURL    string `json:"image_url"`
	MessageType string `json:"message_type"`
}

// SendMessageResponse represents the send message response.
// The message shows up in the cache once its realtime echo arrives.
type SendMessageResponse struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"ts"`
}

// ListMessages returns a conversation's messages in arrival order.
// Conversations not yet loaded, or ?refresh=1, are fetched from the remote source.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	if wantsRefresh(r) || !h.chat.MessagesLoaded(id) {
		if err := h.chat.FetchMessages(r.Context(), id); err != nil {
			h.RemoteError(w, r, err)
			return
		}
	}

	h.JSON(w, http.StatusOK, MessageListResponse{
		ConversationID: id.String(),
		Messages:       h.chat.Messages(id),
	})
}

// SendMessage sends a message into a conversation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Content) > 4096 {
		h.Error(w, http.StatusUnprocessableEntity, "content too long (max 4096 bytes)")
		return
	}

	stored, err := h.chat.Send(r.Context(), id, models.Draft{
		Content:  req.Content,
		ImageURL: req.ImageURL,
		Type:     models.MessageType(req.MessageType),
	})
	if err != nil && stored == nil {
		h.RemoteError(w, r, err)
		return
	}
	if err != nil {
		// Stored, but the conversation timestamp was not bumped.
		h.logger.Warn().
			Err(err).
			Str("conversation_id", id.String()).
			Str("message_id", stored.ID.String()).
			Msg("message stored with stale conversation timestamp")
	}

	h.JSON(w, http.StatusAccepted, SendMessageResponse{
		ID:        stored.ID.String(),
		CreatedAt: stored.CreatedAt.UnixMilli(),
	})
}
