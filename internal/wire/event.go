package wire

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/worklinkhq/worklink/client/internal/model"
)

// Push event types delivered by the server.
const (
	EventNewMessage      = "new_message"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
	EventUserTyping      = "user_typing"
	EventNewNotification = "new_notification"
)

// Frame types emitted by the client.
const (
	FrameTyping            = "typing"
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is one decoded push delivery. Exactly the fields relevant to Type
// are populated.
type Event struct {
	Type           string
	Message        *model.Message
	Notification   *model.Notification
	UserID         string
	ConversationID string
	Typing         bool
	Online         []string
}

// ClientFrame is the JSON payload the client writes to the socket for
// typing and join/leave signals.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

var eventParsers fastjson.ParserPool

// ParseEvent decodes one raw push payload into an Event. Payloads with an
// unrecognized type return ErrUnknownEvent so callers can skip them without
// tearing down the connection.
func ParseEvent(data []byte) (Event, error) {
	p := eventParsers.Get()
	defer eventParsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return Event{}, fmt.Errorf("parse push payload: %w", err)
	}

	ev := Event{Type: string(v.GetStringBytes("type"))}
	switch ev.Type {
	case EventNewMessage:
		m := MessageFromJSON(v.Get("message"))
		ev.Message = &m
	case EventNewNotification:
		n := NotificationFromJSON(v.Get("notification"))
		ev.Notification = &n
	case EventUserOnline, EventUserOffline:
		ev.UserID = string(v.GetStringBytes("user_id"))
		if list := v.GetArray("online_users"); list != nil {
			ev.Online = make([]string, 0, len(list))
			for _, u := range list {
				ev.Online = append(ev.Online, string(u.GetStringBytes()))
			}
		}
	case EventUserTyping:
		ev.UserID = string(v.GetStringBytes("user_id"))
		ev.ConversationID = string(v.GetStringBytes("conversation_id"))
		ev.Typing = v.GetBool("is_typing")
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	return ev, nil
}
