package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/model"
	"github.com/worklinkhq/worklink/client/internal/wire"
)

// DefaultTimeout is the fixed client-side request timeout. There is no retry
// and no in-flight cancellation beyond it; stale responses are guarded at
// apply time instead.
const DefaultTimeout = 10 * time.Second

// APIError is an application-level rejection: a non-2xx status with a
// message body. Network and timeout failures are returned as wrapped
// transport errors, not APIErrors.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Client talks to the WorkLink REST API.
type Client struct {
	base     string
	token    string
	http     *http.Client
	log      *zap.SugaredLogger
	validate *validator.Validate
	parsers  fastjson.ParserPool
}

// New builds a Client for the given API base URL and bearer token. A zero
// timeout selects DefaultTimeout.
func New(baseURL, token string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		base:     strings.TrimSuffix(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		validate: validator.New(),
	}
}

type sendMessageReq struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Content        string `json:"content" validate:"required"`
	ClientID       string `json:"client_id" validate:"required"`
}

type createConversationReq struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Content       string `json:"content" validate:"required"`
}

// Conversations lists the user's conversation summaries.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	body, err := c.do(ctx, http.MethodGet, "/conversations", nil)
	if err != nil {
		return nil, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse conversations response: %w", err)
	}

	items := v.GetArray("conversations")
	list := make([]model.Conversation, 0, len(items))
	for _, item := range items {
		list = append(list, wire.ConversationFromJSON(item))
	}
	return list, nil
}

// Messages fetches one history page of a conversation, newest page first.
// The second return value reports whether older pages remain.
func (c *Client) Messages(ctx context.Context, conversationID string, page int) ([]model.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	path := "/conversations/" + conversationID + "/messages?page=" + strconv.Itoa(page)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, false, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, false, fmt.Errorf("parse messages response: %w", err)
	}

	items := v.GetArray("messages")
	list := make([]model.Message, 0, len(items))
	for _, item := range items {
		list = append(list, wire.MessageFromJSON(item))
	}
	return list, v.GetBool("has_more"), nil
}

// SendMessage posts a message. clientID is a caller-generated idempotency id
// echoed back on the push delivery of the same message.
func (c *Client) SendMessage(ctx context.Context, conversationID, content, clientID string) (model.Message, error) {
	req := sendMessageReq{ConversationID: conversationID, Content: content, ClientID: clientID}
	if err := c.validate.Struct(req); err != nil {
		return model.Message{}, fmt.Errorf("invalid send request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/messages", req)
	if err != nil {
		return model.Message{}, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return model.Message{}, fmt.Errorf("parse send response: %w", err)
	}
	return wire.MessageFromJSON(v.Get("message")), nil
}

// CreateConversation starts a conversation with another user, seeded with an
// initial message.
func (c *Client) CreateConversation(ctx context.Context, participantID, content string) (model.Conversation, error) {
	req := createConversationReq{ParticipantID: participantID, Content: content}
	if err := c.validate.Struct(req); err != nil {
		return model.Conversation{}, fmt.Errorf("invalid create request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/conversations", req)
	if err != nil {
		return model.Conversation{}, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("parse create response: %w", err)
	}
	return wire.ConversationFromJSON(v.Get("conversation")), nil
}

// MarkConversationRead acknowledges all messages of a conversation. The
// server also marks the related notifications read.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	_, err := c.do(ctx, http.MethodPatch, "/conversations/"+conversationID+"/read", nil)
	return err
}

// Notifications lists the user's notifications.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	body, err := c.do(ctx, http.MethodGet, "/notifications", nil)
	if err != nil {
		return nil, err
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("parse notifications response: %w", err)
	}

	items := v.GetArray("notifications")
	list := make([]model.Notification, 0, len(items))
	for _, item := range items {
		list = append(list, wire.NotificationFromJSON(item))
	}
	return list, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPatch, "/notifications/"+id+"/read", nil)
	return err
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPatch, "/notifications/read-all", nil)
	return err
}

func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/notifications/"+id, nil)
	return err
}

// do performs one request and returns the raw response body. Every request
// carries a generated correlation id that also tags the log lines.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	id := xid.New().String()
	req.Header.Set("X-Request-ID", id)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debugw("api request", "id", id, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
		c.log.Debugw("api rejection", "id", id, "status", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}

	return body, nil
}

// errorMessage pulls the human-readable text out of an error body, whichever
// of the known keys the backend used.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if msg := fastjson.GetString(body, "error"); msg != "" {
		return msg
	}
	return fastjson.GetString(body, "message")
}
