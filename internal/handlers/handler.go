package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/chat"
	"github.com/manyajain27/dating-app-sub000/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	chat   *chat.Synchronizer
	store  store.DataStore
	redis  *store.RedisStore // nil when running on the in-process feed
	logger zerolog.Logger
}

// NewHandler creates a new Handler around the user's synchronizer.
func NewHandler(sync *chat.Synchronizer, ds store.DataStore, redis *store.RedisStore, logger zerolog.Logger) *Handler {
	return &Handler{chat: sync, store: ds, redis: redis, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// RemoteError maps a synchronizer error onto a response.
// Anything that is not a known input problem is reported as an upstream failure.
func (h *Handler) RemoteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrInvalidMessageType):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotParticipant):
		h.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrMatchNotFound), errors.Is(err, chat.ErrConversationNotFound):
		h.Error(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("remote operation failed")
		h.Error(w, http.StatusBadGateway, "remote data source unavailable")
	}
}

// conversationID parses the {id} URL parameter, writing a 400 on failure.
func (h *Handler) conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return uuid.Nil, false
	}
	return id, true
}

// wantsRefresh reports whether the caller asked to bypass the cache.
func wantsRefresh(r *http.Request) bool {
	switch r.URL.Query().Get("refresh") {
	case "1", "true":
		return true
	}
	return false
}
