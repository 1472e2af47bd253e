package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const keepaliveInterval = 25 * time.Second

// Events streams the conversation list as server-sent events.
// A snapshot is sent on connect and after every cache change; changes coalesce.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug().Err(err).Msg("write deadline not adjustable")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	changes := h.chat.Watch(ctx)

	seq := 0
	send := func() error {
		resp := ConversationListResponse{Conversations: h.chat.Conversations()}
		if active := h.chat.Active(); active != uuid.Nil {
			resp.Active = &active
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		seq++
		if _, err := fmt.Fprintf(w, "id: %d\nevent: conversations\ndata: %s\n\n", seq, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(); err != nil {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := send(); err != nil {
				h.logger.Debug().Err(err).Msg("event stream closed")
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
