// Package chatd provides a client for the local chat daemon's HTTP API.
package chatd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client is a chatd API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client. The bearer token is read from CHATD_TOKEN.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      os.Getenv("CHATD_TOKEN"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatd error %d: %s", e.Status, e.Message)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// doRequest performs an HTTP request and decodes a JSON response into out (if non-nil).
func (c *Client) doRequest(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// LastMessage is a conversation's newest message.
type LastMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is one entry of the conversation list.
type Conversation struct {
	ID            string       `json:"id"`
	MatchID       string       `json:"match_id"`
	User1ID       string       `json:"user1_id"`
	User2ID       string       `json:"user2_id"`
	LastMessageAt time.Time    `json:"last_message_at"`
	LastMessage   *LastMessage `json:"last_message,omitempty"`
	UnreadCount   int          `json:"unread_count"`
}

// ConversationsResponse is the conversation list, newest first.
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Active        string         `json:"active,omitempty"`
}

// Conversations lists conversations. refresh reloads them from the remote source first.
func (c *Client) Conversations(ctx context.Context, refresh bool) (*ConversationsResponse, error) {
	path := "/conversations"
	if refresh {
		path += "?refresh=1"
	}
	var resp ConversationsResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateConversation returns the conversation for a match, creating it if needed.
func (c *Client) CreateConversation(ctx context.Context, matchID string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/conversations", map[string]string{"match_id": matchID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Message is a chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"image_url,omitempty"`
	Type           string    `json:"message_type"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagesResponse holds a conversation's messages in arrival order.
type MessagesResponse struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// Messages lists a conversation's messages.
func (c *Client) Messages(ctx context.Context, conversationID string, refresh bool) (*MessagesResponse, error) {
	path := "/conversations/" + conversationID + "/messages"
	if refresh {
		path += "?refresh=1"
	}
	var resp MessagesResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendRequest is the request body for sending a message.
type SendRequest struct {
	Content     string `json:"content"`
	ImageURL    string `json:"image_url,omitempty"`
	MessageType string `json:"message_type,omitempty"`
}

// SendResponse is the response from sending a message.
type SendResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// Send sends a message. It shows up in Messages once the daemon sees its echo.
func (c *Client) Send(ctx context.Context, conversationID string, req SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.doRequest(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead marks the other user's messages read. It returns the new unread count.
func (c *Client) MarkRead(ctx context.Context, conversationID string) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/conversations/"+conversationID+"/read", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// Open makes a conversation the one on screen and returns its messages.
func (c *Client) Open(ctx context.Context, conversationID string) (*MessagesResponse, error) {
	var resp MessagesResponse
	if err := c.doRequest(ctx, http.MethodPost, "/conversations/"+conversationID+"/open", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Close leaves a conversation.
func (c *Client) Close(ctx context.Context, conversationID string) error {
	return c.doRequest(ctx, http.MethodPost, "/conversations/"+conversationID+"/close", nil, nil)
}

// Match is one of the user's matches.
type Match struct {
	ID        string `json:"id"`
	OtherUser string `json:"other_user_id"`
	Timestamp int64  `json:"ts"`
}

// Matches lists the user's matches.
func (c *Client) Matches(ctx context.Context) ([]Match, error) {
	var resp struct {
		Matches []Match `json:"matches"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/matches", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// HealthResponse is the daemon health report.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UserID        string `json:"user_id"`
	Conversations int    `json:"conversations"`
	Checks        map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
}

// Health checks daemon health. A degraded daemon still returns its report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Watch streams conversation list snapshots until ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(ConversationsResponse)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client's timeout would cut the stream.
	stream := &http.Client{Transport: c.HTTPClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var snap ConversationsResponse
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return err
		}
		fn(snap)
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
