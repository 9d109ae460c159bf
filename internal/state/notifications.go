package state

import (
	"github.com/worklinkhq/worklink/client/internal/model"
)

// realtimeCap bounds the push-delivered notification buffer.
const realtimeCap = 50

// NotificationStore keeps the fetched notification list, a bounded buffer of
// push-delivered notifications, and the unread counter. The counter is
// re-derived on load and decremented with a floor at zero everywhere else;
// it can never go negative.
type NotificationStore struct {
	items    []model.Notification
	realtime []model.Notification
	unread   int
}

// SetAll replaces the list from a fetch result and re-derives the counter.
// Push-buffered copies of notifications the fetch also returned take over the
// fetched read flag so the two views cannot disagree.
func (s *NotificationStore) SetAll(list []model.Notification) {
	s.items = make([]model.Notification, len(list))
	copy(s.items, list)
	unread := 0
	read := make(map[string]bool, len(s.items))
	for _, n := range s.items {
		if !n.Read {
			unread++
		}
		read[n.ID] = n.Read
	}
	s.unread = unread
	for i := range s.realtime {
		if flag, ok := read[s.realtime[i].ID]; ok {
			s.realtime[i].Read = flag
		}
	}
}

// Push prepends a push-delivered notification to the real-time buffer,
// keeping only the most recent entries, and bumps the counter.
func (s *NotificationStore) Push(n model.Notification) {
	s.realtime = append([]model.Notification{n}, s.realtime...)
	if len(s.realtime) > realtimeCap {
		s.realtime = s.realtime[:realtimeCap]
	}
	s.unread++
}

// MarkRead flips one notification's read flag and decrements the counter if
// it was unread. The same notification can sit in both the fetched list and
// the push buffer; every copy is flipped, the counter moves once.
func (s *NotificationStore) MarkRead(id string) {
	flipped := false
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].Read {
			s.items[i].Read = true
			flipped = true
		}
	}
	for i := range s.realtime {
		if s.realtime[i].ID == id && !s.realtime[i].Read {
			s.realtime[i].Read = true
			flipped = true
		}
	}
	if flipped {
		s.dec()
	}
}

// MarkAllRead flips every notification and zeroes the counter.
func (s *NotificationStore) MarkAllRead() {
	for i := range s.items {
		s.items[i].Read = true
	}
	for i := range s.realtime {
		s.realtime[i].Read = true
	}
	s.unread = 0
}

// Remove deletes a notification from both views, decrementing the counter
// if any removed copy was unread.
func (s *NotificationStore) Remove(id string) {
	wasUnread := false
	for i := range s.items {
		if s.items[i].ID == id {
			wasUnread = wasUnread || !s.items[i].Read
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	for i := range s.realtime {
		if s.realtime[i].ID == id {
			wasUnread = wasUnread || !s.realtime[i].Read
			s.realtime = append(s.realtime[:i], s.realtime[i+1:]...)
			break
		}
	}
	if wasUnread {
		s.dec()
	}
}

// All returns a snapshot copy of the fetched notification list.
func (s *NotificationStore) All() []model.Notification {
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Realtime returns a snapshot copy of the push-delivered buffer, newest first.
func (s *NotificationStore) Realtime() []model.Notification {
	out := make([]model.Notification, len(s.realtime))
	copy(out, s.realtime)
	return out
}

func (s *NotificationStore) Unread() int {
	return s.unread
}

func (s *NotificationStore) dec() {
	if s.unread > 0 {
		s.unread--
	}
}
