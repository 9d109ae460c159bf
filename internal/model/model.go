package model

import (
	"strings"
	"time"
)

// User carries the denormalized display info the server attaches to
// conversations and messages. Avatar holds the raw server-relative path;
// resolve it with ResolveAssetURL at render time, never before storing.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// LastMessage is the conversation-list preview of the newest message.
type LastMessage struct {
	Content  string    `json:"content"`
	SenderID string    `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

// Conversation is a summary row in the conversation list.
type Conversation struct {
	ID               string       `json:"id"`
	Participants     []string     `json:"participants,omitempty"`
	OtherParticipant User         `json:"other_participant"`
	LastMessage      *LastMessage `json:"last_message,omitempty"`
	UnreadCount      int          `json:"unread_count"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Message kinds. Attachment support is reserved server-side but not
// delivered yet.
const (
	MessageText       = "text"
	MessageAttachment = "attachment"
)

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	Read           bool      `json:"read"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveAssetURL qualifies a server-relative file path against the configured
// asset origin. Absolute URLs and empty paths pass through unchanged.
func ResolveAssetURL(origin, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(origin, "/") + "/" + strings.TrimPrefix(path, "/")
}
