package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/worklinkhq/worklink/client/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// testServer upgrades one connection and hands it to fn.
func testServer(t *testing.T, fn func(conn *websocket.Conn, r *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		fn(conn, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSendsTokenQuery(t *testing.T) {
	gotToken := make(chan string, 1)
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
	})

	c, err := Dial(context.Background(), url, "tok-123", nil)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "tok-123", <-gotToken)
	require.True(t, c.Connected())
}

func TestEventsDelivered(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		err := conn.WriteMessage(websocket.TextMessage, []byte(`{
			"type":"new_message",
			"message":{"id":"m1","conversation_id":"c1","sender":{"id":"u1"},"content":"hi"}
		}`))
		require.NoError(t, err)
		// hold the connection open until the client is done
		conn.ReadMessage()
	})

	c, err := Dial(context.Background(), url, "tok", nil)
	require.NoError(t, err)
	defer c.Close()

	select {
	case ev := <-c.Events():
		require.Equal(t, wire.EventNewMessage, ev.Type)
		require.Equal(t, "m1", ev.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMalformedPayloadSkipped(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{broken`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"user_online","user_id":"u1"}`)))
		conn.ReadMessage()
	})

	c, err := Dial(context.Background(), url, "tok", nil)
	require.NoError(t, err)
	defer c.Close()

	select {
	case ev := <-c.Events():
		// the broken frame is skipped, the next one still arrives
		require.Equal(t, wire.EventUserOnline, ev.Type)
		require.Equal(t, "u1", ev.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEmitTypingFrame(t *testing.T) {
	frames := make(chan wire.ClientFrame, 3)
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		for i := 0; i < 3; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f wire.ClientFrame
			require.NoError(t, json.Unmarshal(data, &f))
			frames <- f
		}
	})

	c, err := Dial(context.Background(), url, "tok", nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.JoinConversation("c1"))
	require.NoError(t, c.EmitTyping("c1", true))
	require.NoError(t, c.LeaveConversation("c1"))

	want := []wire.ClientFrame{
		{Type: wire.FrameJoinConversation, ConversationID: "c1"},
		{Type: wire.FrameTyping, ConversationID: "c1", IsTyping: true},
		{Type: wire.FrameLeaveConversation, ConversationID: "c1"},
	}
	for _, w := range want {
		select {
		case got := <-frames:
			require.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %q not received", w.Type)
		}
	}
}

func TestEventsChannelClosesOnDisconnect(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		// close immediately
	})

	c, err := Dial(context.Background(), url, "tok", nil)
	require.NoError(t, err)
	defer c.Close()

	select {
	case _, ok := <-c.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
	require.False(t, c.Connected())
}

func TestEmitAfterCloseFails(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
	})

	c, err := Dial(context.Background(), url, "tok", nil)
	require.NoError(t, err)
	c.Close()

	require.ErrorIs(t, c.EmitTyping("c1", true), ErrClosed)
}
