package handlers

import (
	"net/http"
)

// MatchResponse represents a match in API responses.
type MatchResponse struct {
	ID        string `json:"id"`
	OtherUser string `json:"other_user_id"`
	CreatedAt int64  `json:"ts"`
}

// MatchListResponse represents the match list response.
type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
}

// ListMatches returns the user's matches, newest first.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	me := h.chat.UserID()

	matches, err := h.store.ListMatches(r.Context(), me)
	if err != nil {
		h.RemoteError(w, r, err)
		return
	}

	resp := MatchListResponse{Matches: make([]MatchResponse, len(matches))}
	for i, m := range matches {
		resp.Matches[i] = MatchResponse{
			ID:        m.ID.String(),
			OtherUser: m.Other(me).String(),
			CreatedAt: m.CreatedAt.UnixMilli(),
		}
	}

	h.JSON(w, http.StatusOK, resp)
}
