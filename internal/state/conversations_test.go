package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worklinkhq/worklink/client/internal/model"
)

func conv(id string, unread int) model.Conversation {
	return model.Conversation{
		ID:               id,
		OtherParticipant: model.User{ID: "u-" + id, Name: "User " + id},
		UnreadCount:      unread,
		UpdatedAt:        time.Now().UTC(),
	}
}

func msg(id, convID, senderID string) model.Message {
	return model.Message{
		ID:             id,
		ConversationID: convID,
		Sender:         model.User{ID: senderID},
		Content:        "hello",
		Type:           model.MessageText,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestSetAllDerivesTotalUnread(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 2), conv("c2", 0), conv("c3", 5)})
	require.Equal(t, 7, s.TotalUnread())

	s.SetAll(nil)
	require.Equal(t, 0, s.TotalUnread())
}

func TestApplyIncomingActiveConversationKeepsUnread(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 2), conv("c2", 0)})

	require.True(t, s.ApplyIncoming(msg("m1", "c1", "u-c1"), "c1"))

	c1, ok := s.Get("c1")
	require.True(t, ok)
	require.Equal(t, 2, c1.UnreadCount)
	require.Equal(t, 2, s.TotalUnread())
}

func TestApplyIncomingBackgroundIncrementsUnread(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 2), conv("c2", 0)})

	require.True(t, s.ApplyIncoming(msg("m1", "c2", "u-c2"), "c1"))

	c2, ok := s.Get("c2")
	require.True(t, ok)
	require.Equal(t, 1, c2.UnreadCount)
	require.Equal(t, 3, s.TotalUnread())
}

func TestApplyIncomingMovesConversationToFront(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("b", 0), conv("a", 0), conv("c", 0)})

	require.True(t, s.ApplyIncoming(msg("m1", "a", "u-a"), ""))

	ids := make([]string, 0, 3)
	for _, c := range s.All() {
		ids = append(ids, c.ID)
	}
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestApplyIncomingUpdatesPreview(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 0)})

	m := msg("m1", "c1", "u-c1")
	m.Content = "latest words"
	require.True(t, s.ApplyIncoming(m, ""))

	c1, _ := s.Get("c1")
	require.NotNil(t, c1.LastMessage)
	require.Equal(t, "latest words", c1.LastMessage.Content)
	require.Equal(t, "u-c1", c1.LastMessage.SenderID)
	require.Equal(t, m.CreatedAt, c1.UpdatedAt)
}

func TestApplyIncomingUnknownConversationDropped(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 0)})

	require.False(t, s.ApplyIncoming(msg("m1", "ghost", "u-x"), ""))
	require.Len(t, s.All(), 1)
	require.Equal(t, 0, s.TotalUnread())
}

func TestApplySentNeverIncrementsUnread(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 0), conv("c2", 0)})

	require.True(t, s.ApplySent(msg("m1", "c2", "me")))

	c2, _ := s.Get("c2")
	require.Equal(t, 0, c2.UnreadCount)
	require.Equal(t, 0, s.TotalUnread())
	require.Equal(t, "c2", s.All()[0].ID)
}

func TestMarkReadZeroesAndRecounts(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 3), conv("c2", 4)})

	s.MarkRead("c1")
	c1, _ := s.Get("c1")
	require.Equal(t, 0, c1.UnreadCount)
	require.Equal(t, 4, s.TotalUnread())

	// unknown id is a no-op
	s.MarkRead("ghost")
	require.Equal(t, 4, s.TotalUnread())
}

func TestPrependReplacesExistingEntry(t *testing.T) {
	s := &ConversationStore{}
	s.SetAll([]model.Conversation{conv("c1", 1), conv("c2", 0)})

	fresh := conv("c2", 0)
	s.Prepend(fresh)

	all := s.All()
	require.Len(t, all, 2)
	require.Equal(t, "c2", all[0].ID)
	require.Equal(t, "c1", all[1].ID)
	require.Equal(t, 1, s.TotalUnread())
}
