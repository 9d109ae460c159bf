package state

import (
	"github.com/worklinkhq/worklink/client/internal/model"
)

// MessageStore holds the paginated history of the single active conversation.
// History pages arrive newest-first from the server, so page one replaces the
// list and later pages prepend older messages to the front.
type MessageStore struct {
	conversationID string
	items          []model.Message
	page           int
	hasMore        bool
}

// SetActive switches the store to a new conversation (empty id for none),
// clearing the list and resetting pagination.
func (s *MessageStore) SetActive(conversationID string) {
	s.conversationID = conversationID
	s.items = nil
	s.page = 1
	s.hasMore = true
}

// ActiveID returns the id of the conversation the store currently tracks.
func (s *MessageStore) ActiveID() string {
	return s.conversationID
}

// SetPage applies one fetched history page. A response for a conversation
// that is no longer active is discarded and false is returned; the fetch was
// superseded by a switch while it was in flight.
func (s *MessageStore) SetPage(conversationID string, page int, msgs []model.Message, hasMore bool) bool {
	if conversationID == "" || conversationID != s.conversationID {
		return false
	}
	if page <= 1 {
		s.items = make([]model.Message, len(msgs))
		copy(s.items, msgs)
		s.page = 1
	} else {
		older := make([]model.Message, len(msgs))
		copy(older, msgs)
		s.items = append(older, s.items...)
		s.page = page
	}
	s.hasMore = hasMore
	return true
}

// AppendIncoming appends a push-delivered message. Messages for other
// conversations and ids already present are ignored; the local user's own
// send can echo back over the socket and must not show up twice.
func (s *MessageStore) AppendIncoming(m model.Message) bool {
	if s.conversationID == "" || m.ConversationID != s.conversationID {
		return false
	}
	for _, have := range s.items {
		if have.ID == m.ID {
			return false
		}
	}
	s.items = append(s.items, m)
	return true
}

// AppendSent appends the REST send response, the authoritative creation echo.
func (s *MessageStore) AppendSent(m model.Message) {
	s.items = append(s.items, m)
}

// MarkAllRead flips the read flag on every fetched message. Pages not yet
// fetched keep their server-side state.
func (s *MessageStore) MarkAllRead() {
	for i := range s.items {
		s.items[i].Read = true
	}
}

// All returns a snapshot copy of the message list in chronological order.
func (s *MessageStore) All() []model.Message {
	out := make([]model.Message, len(s.items))
	copy(out, s.items)
	return out
}

func (s *MessageStore) Page() int     { return s.page }
func (s *MessageStore) HasMore() bool { return s.hasMore }
