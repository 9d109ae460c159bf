package state

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/worklinkhq/worklink/client/internal/model"
)

func notif(id string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      "message",
		Title:     "New message",
		Message:   "someone wrote to you",
		Read:      read,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSetAllDerivesUnreadCounter(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false), notif("n2", true), notif("n3", false)})
	require.Equal(t, 2, s.Unread())
}

func TestMarkReadDecrementsOnce(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false)})

	s.MarkRead("n1")
	require.Equal(t, 0, s.Unread())

	// marking an already-read notification again must not underflow
	s.MarkRead("n1")
	require.Equal(t, 0, s.Unread())
}

func TestCounterNeverGoesNegative(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false)})

	s.MarkRead("n1")
	s.Remove("n1")
	s.MarkRead("ghost")
	s.Remove("ghost")
	require.Equal(t, 0, s.Unread())
}

func TestCounterMatchesUnreadItemsAfterEveryOperation(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false), notif("n2", false), notif("n3", true)})

	check := func() {
		unread := 0
		for _, n := range s.All() {
			if !n.Read {
				unread++
			}
		}
		for _, n := range s.Realtime() {
			if !n.Read {
				unread++
			}
		}
		require.Equal(t, unread, s.Unread())
	}

	check()
	s.MarkRead("n1")
	check()
	s.Push(notif("n4", false))
	check()
	s.Remove("n2")
	check()
	s.MarkAllRead()
	check()
}

func TestMarkReadFlipsBothViewsOfSameNotification(t *testing.T) {
	s := &NotificationStore{}
	// pushed first, then returned by the next fetch: one record, two views
	s.Push(notif("n1", false))
	s.SetAll([]model.Notification{notif("n1", false)})
	require.Equal(t, 1, s.Unread())

	s.MarkRead("n1")
	require.True(t, s.All()[0].Read)
	require.True(t, s.Realtime()[0].Read)
	require.Equal(t, 0, s.Unread())
}

func TestSetAllSyncsPushBufferReadFlags(t *testing.T) {
	s := &NotificationStore{}
	s.Push(notif("n1", false))
	// the server marked it read before the fetch landed
	s.SetAll([]model.Notification{notif("n1", true)})
	require.True(t, s.Realtime()[0].Read)
	require.Equal(t, 0, s.Unread())
}

func TestRemoveDeletesFromBothViews(t *testing.T) {
	s := &NotificationStore{}
	s.Push(notif("n1", false))
	s.SetAll([]model.Notification{notif("n1", false)})

	s.Remove("n1")
	require.Empty(t, s.All())
	require.Empty(t, s.Realtime())
	require.Equal(t, 0, s.Unread())
}

func TestRemoveUnreadDecrements(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false), notif("n2", true)})

	s.Remove("n1")
	require.Equal(t, 0, s.Unread())
	require.Len(t, s.All(), 1)

	s.Remove("n2")
	require.Equal(t, 0, s.Unread())
	require.Empty(t, s.All())
}

func TestPushPrependsAndBumpsCounter(t *testing.T) {
	s := &NotificationStore{}
	s.Push(notif("n1", false))
	s.Push(notif("n2", false))

	rt := s.Realtime()
	require.Equal(t, "n2", rt[0].ID)
	require.Equal(t, "n1", rt[1].ID)
	require.Equal(t, 2, s.Unread())
}

func TestRealtimeBufferIsBounded(t *testing.T) {
	s := &NotificationStore{}
	for i := 0; i < realtimeCap+10; i++ {
		s.Push(notif("n"+strconv.Itoa(i), false))
	}

	rt := s.Realtime()
	require.Len(t, rt, realtimeCap)
	// newest entries survive the trim
	require.Equal(t, "n"+strconv.Itoa(realtimeCap+9), rt[0].ID)
}

func TestMarkAllReadZeroesCounter(t *testing.T) {
	s := &NotificationStore{}
	s.SetAll([]model.Notification{notif("n1", false), notif("n2", false)})
	s.Push(notif("n3", false))

	s.MarkAllRead()
	require.Equal(t, 0, s.Unread())
	for _, n := range s.Realtime() {
		require.True(t, n.Read)
	}
}
