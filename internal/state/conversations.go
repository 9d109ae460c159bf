package state

import (
	"github.com/worklinkhq/worklink/client/internal/model"
)

// ConversationStore keeps the conversation summaries ordered most recently
// active first. It is not safe for concurrent use on its own; the App
// serializes access the way the browser event loop did.
type ConversationStore struct {
	items       []model.Conversation
	totalUnread int
}

// SetAll replaces the whole list from a fetch result and re-derives the
// total unread count.
func (s *ConversationStore) SetAll(list []model.Conversation) {
	s.items = make([]model.Conversation, len(list))
	copy(s.items, list)
	s.recount()
}

// All returns a snapshot copy of the ordered list.
func (s *ConversationStore) All() []model.Conversation {
	out := make([]model.Conversation, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the conversation with the given id, if present.
func (s *ConversationStore) Get(id string) (model.Conversation, bool) {
	for _, c := range s.items {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// TotalUnread is the sum of per-conversation unread counts. It is only ever
// recomputed from those counts, never tracked separately.
func (s *ConversationStore) TotalUnread() int {
	return s.totalUnread
}

// ApplyIncoming merges a push-delivered message from the other participant.
// The conversation moves to the front; its unread count grows by one unless
// it is the active conversation, which is already considered seen. Messages
// for unknown conversations are dropped and false is returned; such a
// conversation has to be discovered through a fresh fetch.
func (s *ConversationStore) ApplyIncoming(m model.Message, activeID string) bool {
	i := s.index(m.ConversationID)
	if i < 0 {
		return false
	}
	s.touch(i, m)
	if m.ConversationID != activeID {
		s.items[0].UnreadCount++
		s.recount()
	}
	return true
}

// ApplySent merges the local user's own message: same preview and reorder
// update, never an unread increment.
func (s *ConversationStore) ApplySent(m model.Message) bool {
	i := s.index(m.ConversationID)
	if i < 0 {
		return false
	}
	s.touch(i, m)
	return true
}

// Prepend inserts a freshly created conversation at the front.
func (s *ConversationStore) Prepend(c model.Conversation) {
	if i := s.index(c.ID); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.items = append([]model.Conversation{c}, s.items...)
	s.recount()
}

// MarkRead zeroes one conversation's unread count and re-derives the total.
func (s *ConversationStore) MarkRead(id string) {
	i := s.index(id)
	if i < 0 {
		return
	}
	s.items[i].UnreadCount = 0
	s.recount()
}

// touch updates the preview fields of items[i] and moves it to position 0.
// Last mutated wins the front slot; relative order of the rest is preserved.
func (s *ConversationStore) touch(i int, m model.Message) {
	c := s.items[i]
	c.LastMessage = &model.LastMessage{
		Content:  m.Content,
		SenderID: m.Sender.ID,
		SentAt:   m.CreatedAt,
	}
	c.UpdatedAt = m.CreatedAt
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.items = append([]model.Conversation{c}, s.items...)
}

func (s *ConversationStore) index(id string) int {
	for i, c := range s.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *ConversationStore) recount() {
	total := 0
	for _, c := range s.items {
		total += c.UnreadCount
	}
	s.totalUnread = total
}
