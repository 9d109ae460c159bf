package wire

import (
	"time"

	"github.com/valyala/fastjson"

	"github.com/worklinkhq/worklink/client/internal/model"
)

// This file is the single normalization point for wire payloads (REST and
// push alike). The backend is not consistent about shapes: avatars arrive as
// a plain string, as {"path": ...} or as {"filename": ...}, timestamps as
// RFC 3339 strings or unix milliseconds. Everything is canonicalized here
// and internal logic never branches on shape again.

// UserFromJSON maps any accepted user wire shape into a model.User.
func UserFromJSON(v *fastjson.Value) model.User {
	if v == nil {
		return model.User{}
	}
	u := model.User{
		ID:   firstString(v, "id", "_id", "user_id"),
		Name: firstString(v, "name", "username"),
	}
	u.Avatar = avatarPath(v)
	return u
}

// MessageFromJSON maps a message wire object into a model.Message.
func MessageFromJSON(v *fastjson.Value) model.Message {
	if v == nil {
		return model.Message{}
	}
	m := model.Message{
		ID:             firstString(v, "id", "_id"),
		ConversationID: firstString(v, "conversation_id", "conversation"),
		Content:        string(v.GetStringBytes("content")),
		Type:           string(v.GetStringBytes("type")),
		CreatedAt:      timeFromValue(v.Get("created_at")),
		Read:           v.GetBool("read"),
	}
	if m.Type == "" {
		m.Type = model.MessageText
	}
	if sender := v.Get("sender"); sender != nil && sender.Type() == fastjson.TypeObject {
		m.Sender = UserFromJSON(sender)
	} else {
		m.Sender.ID = firstString(v, "sender_id", "sender")
	}
	return m
}

// ConversationFromJSON maps a conversation summary wire object into a
// model.Conversation.
func ConversationFromJSON(v *fastjson.Value) model.Conversation {
	if v == nil {
		return model.Conversation{}
	}
	c := model.Conversation{
		ID:               firstString(v, "id", "_id"),
		OtherParticipant: UserFromJSON(v.Get("other_participant")),
		UnreadCount:      v.GetInt("unread_count"),
		UpdatedAt:        timeFromValue(v.Get("updated_at")),
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	for _, p := range v.GetArray("participants") {
		if p.Type() == fastjson.TypeObject {
			c.Participants = append(c.Participants, firstString(p, "id", "_id"))
		} else {
			c.Participants = append(c.Participants, string(p.GetStringBytes()))
		}
	}
	if lm := v.Get("last_message"); lm != nil && lm.Type() == fastjson.TypeObject {
		c.LastMessage = &model.LastMessage{
			Content:  string(lm.GetStringBytes("content")),
			SenderID: firstString(lm, "sender_id", "sender"),
			SentAt:   timeFromValue(lm.Get("sent_at")),
		}
	}
	return c
}

// NotificationFromJSON maps a notification wire object into a
// model.Notification.
func NotificationFromJSON(v *fastjson.Value) model.Notification {
	if v == nil {
		return model.Notification{}
	}
	return model.Notification{
		ID:        firstString(v, "id", "_id"),
		Type:      string(v.GetStringBytes("type")),
		Title:     string(v.GetStringBytes("title")),
		Message:   string(v.GetStringBytes("message")),
		Read:      v.GetBool("read"),
		CreatedAt: timeFromValue(v.Get("created_at")),
	}
}

func firstString(v *fastjson.Value, keys ...string) string {
	for _, k := range keys {
		if s := v.GetStringBytes(k); len(s) > 0 {
			return string(s)
		}
	}
	return ""
}

// avatarPath extracts the raw relative avatar path from the shapes the
// backend has shipped over time. The path stays relative here; rendering
// resolves it against the asset origin.
func avatarPath(v *fastjson.Value) string {
	for _, key := range []string{"avatar", "photo"} {
		a := v.Get(key)
		if a == nil {
			continue
		}
		switch a.Type() {
		case fastjson.TypeString:
			return string(a.GetStringBytes())
		case fastjson.TypeObject:
			if s := a.GetStringBytes("path"); len(s) > 0 {
				return string(s)
			}
			if s := a.GetStringBytes("filename"); len(s) > 0 {
				return string(s)
			}
		}
	}
	return ""
}

func timeFromValue(v *fastjson.Value) time.Time {
	if v == nil {
		return time.Time{}
	}
	switch v.Type() {
	case fastjson.TypeString:
		if t, err := time.Parse(time.RFC3339, string(v.GetStringBytes())); err == nil {
			return t
		}
	case fastjson.TypeNumber:
		// Unix milliseconds, as emitted by the legacy backend.
		return time.UnixMilli(v.GetInt64()).UTC()
	}
	return time.Time{}
}
