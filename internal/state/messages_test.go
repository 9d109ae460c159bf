package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worklinkhq/worklink/client/internal/model"
)

func TestSetActiveResetsPagination(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")
	require.True(t, s.SetPage("c1", 1, []model.Message{msg("m1", "c1", "u")}, true))
	require.True(t, s.SetPage("c1", 2, []model.Message{msg("m0", "c1", "u")}, false))
	require.Equal(t, 2, s.Page())
	require.False(t, s.HasMore())

	s.SetActive("c2")
	require.Empty(t, s.All())
	require.Equal(t, 1, s.Page())
	require.True(t, s.HasMore())
}

func TestSetPagePrependsOlderHistory(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")

	require.True(t, s.SetPage("c1", 1, []model.Message{msg("m3", "c1", "u"), msg("m4", "c1", "u")}, true))
	require.True(t, s.SetPage("c1", 2, []model.Message{msg("m1", "c1", "u"), msg("m2", "c1", "u")}, false))

	ids := make([]string, 0, 4)
	for _, m := range s.All() {
		ids = append(ids, m.ID)
	}
	require.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
}

func TestSetPageDiscardsStaleResponse(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")

	// the user switched to c2 while the c1 fetch was in flight
	s.SetActive("c2")
	require.False(t, s.SetPage("c1", 1, []model.Message{msg("m1", "c1", "u")}, false))
	require.Empty(t, s.All())
}

func TestAppendIncomingDeduplicatesByID(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")

	m := msg("m1", "c1", "u")
	require.True(t, s.AppendIncoming(m))
	require.False(t, s.AppendIncoming(m))
	require.Len(t, s.All(), 1)
}

func TestAppendIncomingIgnoresOtherConversations(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")

	require.False(t, s.AppendIncoming(msg("m1", "c2", "u")))
	require.Empty(t, s.All())

	s.SetActive("")
	require.False(t, s.AppendIncoming(msg("m2", "c1", "u")))
}

func TestSendThenEchoDoesNotDuplicate(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")

	sent := msg("m1", "c1", "me")
	s.AppendSent(sent)

	// the socket echo of the same message arrives later
	require.False(t, s.AppendIncoming(sent))

	count := 0
	for _, m := range s.All() {
		if m.ID == "m1" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestMarkAllReadFlipsFetchedMessagesOnly(t *testing.T) {
	s := &MessageStore{}
	s.SetActive("c1")
	require.True(t, s.SetPage("c1", 1, []model.Message{msg("m1", "c1", "u"), msg("m2", "c1", "u")}, true))

	s.MarkAllRead()
	for _, m := range s.All() {
		require.True(t, m.Read)
	}
}
