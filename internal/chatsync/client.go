package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
)

// API is the server surface the session depends on. Implemented by Client
// over HTTP; tests substitute fakes.
type API interface {
	LoadMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Member, error)
	SendMessage(ctx context.Context, roomID uuid.UUID, body string, replyTo *uuid.UUID) (*models.Message, error)
	ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) (*models.ReactionUpdate, error)
	CreatePoll(ctx context.Context, roomID uuid.UUID, question string, options []string, multiSelect bool) (*models.Message, error)
	ToggleVote(ctx context.Context, optionID uuid.UUID) (*models.PollUpdate, error)
}

// Client is the HTTP implementation of API against the chat server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client. baseURL is the server root without a
// trailing slash, e.g. "http://localhost:8080/api/v1".
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// envelope mirrors the server response body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		if env.Error != "" {
			return fmt.Errorf("server: %s", env.Error)
		}
		return fmt.Errorf("server: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// LoadMessages fetches the room history in chronological order.
func (c *Client) LoadMessages(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	var data struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID.String()+"/messages", nil, &data); err != nil {
		return nil, err
	}
	return data.Messages, nil
}

// ListMembers fetches the mention roster in join order.
func (c *Client) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.Member, error) {
	var data struct {
		Members []models.Member `json:"members"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms/"+roomID.String()+"/members", nil, &data); err != nil {
		return nil, err
	}
	return data.Members, nil
}

// SendMessage posts a message and returns the durable form.
func (c *Client) SendMessage(ctx context.Context, roomID uuid.UUID, body string, replyTo *uuid.UUID) (*models.Message, error) {
	req := struct {
		Body    string     `json:"body"`
		ReplyTo *uuid.UUID `json:"reply_to,omitempty"`
	}{Body: body, ReplyTo: replyTo}
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToggleReaction taps an emoji on a message and returns the full collection.
func (c *Client) ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) (*models.ReactionUpdate, error) {
	req := struct {
		Emoji string `json:"emoji"`
	}{Emoji: emoji}
	var update models.ReactionUpdate
	if err := c.do(ctx, http.MethodPost, "/messages/"+messageID.String()+"/reactions", req, &update); err != nil {
		return nil, err
	}
	return &update, nil
}

// CreatePoll posts a poll and returns its carrier message.
func (c *Client) CreatePoll(ctx context.Context, roomID uuid.UUID, question string, options []string, multiSelect bool) (*models.Message, error) {
	req := struct {
		Question    string   `json:"question"`
		Options     []string `json:"options"`
		MultiSelect bool     `json:"multi_select"`
	}{Question: question, Options: options, MultiSelect: multiSelect}
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/rooms/"+roomID.String()+"/polls", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ToggleVote taps a poll option and returns the full poll state.
func (c *Client) ToggleVote(ctx context.Context, optionID uuid.UUID) (*models.PollUpdate, error) {
	var update models.PollUpdate
	if err := c.do(ctx, http.MethodPost, "/polls/options/"+optionID.String()+"/vote", struct{}{}, &update); err != nil {
		return nil, err
	}
	return &update, nil
}
