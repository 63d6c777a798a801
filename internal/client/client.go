// Package client provides the HTTP client for the chat REST API. It
// implements session.RoomAPI so a session.Controller can drive a room
// against a live apiserver, and decodes every failed response into the
// shared *chat.APIError taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/parley/chat-app/internal/chat"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 10 * time.Second

// Client talks to the chat REST API. The zero value is not usable; use New.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client for the API at baseURL. The token may be empty
// until Login or Register is called.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SetToken replaces the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// do performs one request and decodes the response into out (unless nil).
// Non-2xx responses are returned as *chat.APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeAPIError turns a failed response into a *chat.APIError, falling
// back to a generic error when the body is not the structured shape.
func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error *chat.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
		body.Error.Status = resp.StatusCode
		return body.Error
	}
	return chat.NewAPIError(resp.StatusCode, chat.CodeInvalidRequest,
		fmt.Sprintf("unexpected response status %d", resp.StatusCode))
}

// AuthResult is the outcome of Register or Login.
type AuthResult struct {
	Token string    `json:"token"`
	User  chat.User `json:"user"`
}

// Register creates an account and adopts its token.
func (c *Client) Register(ctx context.Context, email, nickname, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email": email, "nickname": nickname, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Login authenticates and adopts the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*chat.User, error) {
	var out struct {
		User *chat.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// ListRooms returns all active rooms.
func (c *Client) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var out struct {
		Rooms []chat.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// CreateRoom creates a room; the creator joins automatically.
func (c *Client) CreateRoom(ctx context.Context, name string) (*chat.Room, error) {
	var out struct {
		Room *chat.Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return out.Room, nil
}

// GetRoom implements session.RoomAPI.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*chat.Room, error) {
	var out struct {
		Room *chat.Room `json:"room"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID), nil, &out); err != nil {
		return nil, err
	}
	return out.Room, nil
}

// JoinRoom implements session.RoomAPI.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (bool, error) {
	var out struct {
		AlreadyJoined bool `json:"alreadyJoined"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/join", nil, &out); err != nil {
		return false, err
	}
	return out.AlreadyJoined, nil
}

// ListMessages implements session.RoomAPI.
func (c *Client) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]chat.Message, bool, error) {
	path := fmt.Sprintf("/rooms/%s/messages?limit=%d&offset=%d", url.PathEscape(roomID), limit, offset)
	var out struct {
		Messages []chat.Message `json:"messages"`
		HasMore  bool           `json:"hasMore"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, false, err
	}
	return out.Messages, out.HasMore, nil
}

// SendMessage implements session.RoomAPI.
func (c *Client) SendMessage(ctx context.Context, roomID, content string, msgType chat.MessageType, parentMessageID *string) (*chat.Message, error) {
	body := map[string]any{"content": content, "type": msgType}
	if parentMessageID != nil {
		body["parentMessageId"] = *parentMessageID
	}
	var out struct {
		Message *chat.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/rooms/"+url.PathEscape(roomID)+"/messages", body, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

// DeleteMessage implements session.RoomAPI.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	path := "/rooms/" + url.PathEscape(roomID) + "/messages/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ToggleReaction implements session.RoomAPI.
func (c *Client) ToggleReaction(ctx context.Context, roomID, messageID string) (bool, int, error) {
	path := "/rooms/" + url.PathEscape(roomID) + "/messages/" + url.PathEscape(messageID) + "/reactions"
	var out struct {
		IsLiked    bool `json:"isLiked"`
		TotalLikes int  `json:"totalLikes"`
	}
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"type": string(chat.ReactionTypeLike)}, &out); err != nil {
		return false, 0, err
	}
	return out.IsLiked, out.TotalLikes, nil
}

// ListParticipants implements session.RoomAPI.
func (c *Client) ListParticipants(ctx context.Context, roomID string) ([]chat.Participant, error) {
	var out struct {
		Participants []chat.Participant `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+url.PathEscape(roomID)+"/participants", nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}
