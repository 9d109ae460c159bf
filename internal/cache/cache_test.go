package cache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worklinkhq/worklink/client/internal/model"
)

func open(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("file:" + filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConversationRoundTrip(t *testing.T) {
	c := open(t)

	older := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	newer := time.Now().UTC().Truncate(time.Millisecond)
	in := []model.Conversation{
		{ID: "c1", OtherParticipant: model.User{ID: "u1", Name: "Ana", Avatar: "uploads/a.png"}, UnreadCount: 2, UpdatedAt: older},
		{ID: "c2", OtherParticipant: model.User{ID: "u2", Name: "Bo"}, UpdatedAt: newer},
	}
	require.NoError(t, c.SaveConversations(in))

	out, err := c.LoadConversations()
	require.NoError(t, err)
	require.Len(t, out, 2)
	// most recently active first
	require.Equal(t, "c2", out[0].ID)
	require.Equal(t, "c1", out[1].ID)
	require.Equal(t, 2, out[1].UnreadCount)
	require.Equal(t, "uploads/a.png", out[1].OtherParticipant.Avatar)
}

func TestSaveConversationsUpserts(t *testing.T) {
	c := open(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1", UnreadCount: 1, UpdatedAt: now}}))
	require.NoError(t, c.SaveConversations([]model.Conversation{{ID: "c1", UnreadCount: 0, UpdatedAt: now.Add(time.Minute)}}))

	out, err := c.LoadConversations()
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 0, out[0].UnreadCount)
}

func TestMessageRoundTripChronological(t *testing.T) {
	c := open(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	in := []model.Message{
		{ID: "m2", ConversationID: "c1", Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: "m1", ConversationID: "c1", Content: "first", CreatedAt: base},
	}
	require.NoError(t, c.SaveMessages("c1", in))

	out, err := c.LoadMessages("c1", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "m1", out[0].ID)
	require.Equal(t, "m2", out[1].ID)
}

func TestLoadMessagesLimitKeepsNewest(t *testing.T) {
	c := open(t)
	base := time.Now().UTC().Truncate(time.Millisecond)

	var in []model.Message
	for i := 0; i < 5; i++ {
		in = append(in, model.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "c1",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, c.SaveMessages("c1", in))

	out, err := c.LoadMessages("c1", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "m3", out[0].ID)
	require.Equal(t, "m4", out[1].ID)
}

func TestMessagesScopedToConversation(t *testing.T) {
	c := open(t)
	now := time.Now().UTC()

	require.NoError(t, c.SaveMessages("c1", []model.Message{{ID: "m1", ConversationID: "c1", CreatedAt: now}}))
	require.NoError(t, c.SaveMessages("c2", []model.Message{{ID: "m2", ConversationID: "c2", CreatedAt: now}}))

	out, err := c.LoadMessages("c1", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "m1", out[0].ID)
}

func TestNotificationRoundTripAndDelete(t *testing.T) {
	c := open(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	in := []model.Notification{
		{ID: "n1", Type: "message", Title: "New message", Read: false, CreatedAt: now},
		{ID: "n2", Type: "review", Title: "New review", Read: true, CreatedAt: now.Add(time.Second)},
	}
	require.NoError(t, c.SaveNotifications(in))

	out, err := c.LoadNotifications()
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "n2", out[0].ID)

	require.NoError(t, c.DeleteNotification("n2"))
	out, err = c.LoadNotifications()
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "n1", out[0].ID)
}
