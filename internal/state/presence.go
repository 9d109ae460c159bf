package state

import (
	"sort"
)

// PresenceStore tracks who is online and who is typing in which conversation.
// The state is purely derived from push events; nothing is persisted and a
// reconnect resets it.
type PresenceStore struct {
	online map[string]struct{}
	typing map[string]map[string]struct{}
}

// SetOnline replaces the online set with a full snapshot.
func (s *PresenceStore) SetOnline(userIDs []string) {
	s.online = make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		s.online[id] = struct{}{}
	}
}

func (s *PresenceStore) AddOnline(userID string) {
	if s.online == nil {
		s.online = make(map[string]struct{})
	}
	s.online[userID] = struct{}{}
}

// RemoveOnline drops a user from the online set and from every typing set;
// a user who disconnects mid-typing never sends the explicit stop signal.
func (s *PresenceStore) RemoveOnline(userID string) {
	delete(s.online, userID)
	for convID, users := range s.typing {
		delete(users, userID)
		if len(users) == 0 {
			delete(s.typing, convID)
		}
	}
}

func (s *PresenceStore) IsOnline(userID string) bool {
	_, ok := s.online[userID]
	return ok
}

// Online returns the online user ids in stable sorted order.
func (s *PresenceStore) Online() []string {
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetTyping records a typing start or stop for a (conversation, user) pair.
// Starts are idempotent; the per-conversation entry is removed entirely once
// its set drains so the map does not accumulate empty husks.
func (s *PresenceStore) SetTyping(conversationID, userID string, typing bool) {
	if typing {
		if s.typing == nil {
			s.typing = make(map[string]map[string]struct{})
		}
		users := s.typing[conversationID]
		if users == nil {
			users = make(map[string]struct{})
			s.typing[conversationID] = users
		}
		users[userID] = struct{}{}
		return
	}

	users, ok := s.typing[conversationID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.typing, conversationID)
	}
}

// TypingIn returns who is typing in a conversation, sorted.
func (s *PresenceStore) TypingIn(conversationID string) []string {
	users, ok := s.typing[conversationID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(users))
	for id := range users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TypingConversations reports how many conversations currently have at least
// one typing user.
func (s *PresenceStore) TypingConversations() int {
	return len(s.typing)
}

// Reset clears all presence and typing state, as done on reconnect.
func (s *PresenceStore) Reset() {
	s.online = nil
	s.typing = nil
}
