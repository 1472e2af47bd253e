package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manyajain27/dating-app-sub000/internal/chat"
	"github.com/manyajain27/dating-app-sub000/internal/models"
	"github.com/manyajain27/dating-app-sub000/internal/realtime"
	"github.com/manyajain27/dating-app-sub000/internal/store"
)

type fixture struct {
	router http.Handler
	db     *store.SQLiteStore
	chat   *chat.Synchronizer
	me     uuid.UUID
	other  uuid.UUID
	match  *models.Match
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := store.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(db.Close)

	feed := realtime.NewMemoryFeed(0)
	remote := realtime.NewEmittingStore(db, feed, zerolog.Nop())

	me, other := uuid.New(), uuid.New()
	match, err := db.CreateMatch(ctx, me, other)
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	sync := chat.New(remote, feed, me, zerolog.Nop())
	go sync.Run(ctx)
	waitUntil(t, func() bool { return feed.Subscribers() == 1 })

	h := NewHandler(sync, remote, nil, zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/matches", h.ListMatches)
	r.Get("/events", h.Events)
	r.Get("/conversations", h.ListConversations)
	r.Post("/conversations", h.CreateConversation)
	r.Get("/conversations/{id}/messages", h.ListMessages)
	r.Post("/conversations/{id}/messages", h.SendMessage)
	r.Post("/conversations/{id}/read", h.MarkRead)
	r.Post("/conversations/{id}/open", h.OpenConversation)
	r.Post("/conversations/{id}/close", h.CloseConversation)

	return &fixture{router: r, db: db, chat: sync, me: me, other: other, match: match}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func (f *fixture) createConversation(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/conversations", `{"match_id":"`+f.match.ID.String()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create conversation: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp CreateConversationResponse
	decode(t, rec, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "healthy" || resp.Checks["store"].Status != "pass" {
		t.Fatalf("unexpected health %+v", resp)
	}
	if resp.Checks["redis"].Status != "skip" {
		t.Fatalf("redis should be skipped without a client, got %+v", resp.Checks["redis"])
	}
	if resp.UserID != f.me.String() {
		t.Fatalf("expected user %s, got %s", f.me, resp.UserID)
	}
}

func TestCreateConversationStatusCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createConversation(t)
	if second := f.createConversation(t); second != first {
		t.Fatalf("repeat create returned %s, want %s", second, first)
	}

	foreign, err := f.db.CreateMatch(ctx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"bad id", `{"match_id":"nope"}`, http.StatusBadRequest},
		{"unknown match", `{"match_id":"` + uuid.NewString() + `"}`, http.StatusNotFound},
		{"not participant", `{"match_id":"` + foreign.ID.String() + `"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/conversations", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSendMessageAppearsAfterEcho(t *testing.T) {
	f := newFixture(t)
	id := f.createConversation(t)

	rec := f.do(t, http.MethodGet, "/conversations/"+id+"/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list messages: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/conversations/"+id+"/messages", `{"content":"  hello  "}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	var sent SendMessageResponse
	decode(t, rec, &sent)

	waitUntil(t, func() bool {
		rec := f.do(t, http.MethodGet, "/conversations/"+id+"/messages", "")
		var resp MessageListResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			return false
		}
		return len(resp.Messages) == 1 && resp.Messages[0].ID.String() == sent.ID && resp.Messages[0].Content == "hello"
	})

	rec = f.do(t, http.MethodGet, "/conversations", "")
	var list ConversationListResponse
	decode(t, rec, &list)
	if len(list.Conversations) != 1 || list.Conversations[0].LastMessage == nil {
		t.Fatalf("expected conversation with last message, got %+v", list)
	}
}

func TestSendMessageRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	id := f.createConversation(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"empty", "/conversations/" + id + "/messages", `{"content":"   "}`, http.StatusBadRequest},
		{"bad type", "/conversations/" + id + "/messages", `{"content":"x","message_type":"sticker"}`, http.StatusBadRequest},
		{"bad json", "/conversations/" + id + "/messages", `nope`, http.StatusBadRequest},
		{"bad id", "/conversations/xyz/messages", `{"content":"x"}`, http.StatusBadRequest},
		{"too long", "/conversations/" + id + "/messages", `{"content":"` + strings.Repeat("a", 5000) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestConversationOperationsCheckMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	match, err := f.db.CreateMatch(ctx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	foreign, err := f.db.CreateConversation(ctx, *match)
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	unknown := uuid.NewString()

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"send unknown", "/conversations/" + unknown + "/messages", `{"content":"x"}`, http.StatusNotFound},
		{"open unknown", "/conversations/" + unknown + "/open", "", http.StatusNotFound},
		{"send foreign", "/conversations/" + foreign.ID.String() + "/messages", `{"content":"x"}`, http.StatusForbidden},
		{"open foreign", "/conversations/" + foreign.ID.String() + "/open", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestOpenReadClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createConversation(t)
	convID := uuid.MustParse(id)

	if _, err := f.db.InsertMessage(ctx, models.Message{ConversationID: convID, SenderID: f.other, Content: "hey"}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if err := f.chat.FetchConversations(ctx); err != nil {
		t.Fatalf("FetchConversations: %v", err)
	}
	if n := f.chat.UnreadCount(convID); n != 1 {
		t.Fatalf("expected 1 unread, got %d", n)
	}

	rec := f.do(t, http.MethodPost, "/conversations/"+id+"/open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open: %d (%s)", rec.Code, rec.Body.String())
	}
	var opened MessageListResponse
	decode(t, rec, &opened)
	if len(opened.Messages) != 1 {
		t.Fatalf("expected 1 message on open, got %d", len(opened.Messages))
	}
	if f.chat.Active() != convID || f.chat.UnreadCount(convID) != 0 {
		t.Fatalf("open should activate and clear unread")
	}

	rec = f.do(t, http.MethodPost, "/conversations/"+id+"/read", "")
	var read ReadResponse
	decode(t, rec, &read)
	if rec.Code != http.StatusOK || read.UnreadCount != 0 {
		t.Fatalf("read: %d %+v", rec.Code, read)
	}

	rec = f.do(t, http.MethodPost, "/conversations/"+id+"/close", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close: expected 204, got %d", rec.Code)
	}
	if f.chat.Active() != uuid.Nil {
		t.Fatalf("close should clear the active conversation")
	}
}

func TestListMatches(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/matches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp MatchListResponse
	decode(t, rec, &resp)
	if len(resp.Matches) != 1 || resp.Matches[0].OtherUser != f.other.String() {
		t.Fatalf("unexpected matches %+v", resp.Matches)
	}
}

func TestRemoteFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.db.Close()

	rec := f.do(t, http.MethodGet, "/conversations?refresh=1", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestEventsStreamsSnapshots(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	nextData := func() ConversationListResponse {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended")
				}
				if data, found := strings.CutPrefix(line, "data: "); found {
					var snap ConversationListResponse
					if err := json.Unmarshal([]byte(data), &snap); err != nil {
						t.Fatalf("bad event data: %v", err)
					}
					return snap
				}
			case <-timeout:
				t.Fatalf("timed out waiting for event")
			}
		}
	}

	if first := nextData(); len(first.Conversations) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(first.Conversations))
	}

	f.createConversation(t)
	if next := nextData(); len(next.Conversations) != 1 {
		t.Fatalf("expected snapshot with the new conversation, got %d", len(next.Conversations))
	}
}
