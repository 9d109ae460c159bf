package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

var ErrClosed = errors.New("transport closed")

// Client is the persistent push connection to the WorkLink server. Decoded
// events come out of Events; typing and join/leave signals go in through the
// emit methods. Delivery is at most once; nothing missed while disconnected
// is replayed, the application refetches instead. The client does not redial
// on its own; the caller owns reconnect policy.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan wire.Event
	log    *zap.SugaredLogger

	connected atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Dial connects and authenticates with the session token, then starts the
// read and write pumps.
func Dial(ctx context.Context, wsURL, token string, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		events: make(chan wire.Event, 64),
		log:    log,
		done:   make(chan struct{}),
	}
	c.connected.Store(true)

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Events delivers decoded push events. The channel closes when the
// connection drops.
func (c *Client) Events() <-chan wire.Event {
	return c.events
}

// Connected reports whether the socket is still up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// EmitTyping signals the local user's typing state in a conversation.
func (c *Client) EmitTyping(conversationID string, typing bool) error {
	return c.emit(wire.ClientFrame{
		Type:           wire.FrameTyping,
		ConversationID: conversationID,
		IsTyping:       typing,
	})
}

// JoinConversation announces which conversation the user is viewing.
func (c *Client) JoinConversation(conversationID string) error {
	return c.emit(wire.ClientFrame{Type: wire.FrameJoinConversation, ConversationID: conversationID})
}

// LeaveConversation announces that the user left the conversation view.
func (c *Client) LeaveConversation(conversationID string) error {
	return c.emit(wire.ClientFrame{Type: wire.FrameLeaveConversation, ConversationID: conversationID})
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) emit(frame wire.ClientFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnw("websocket read failed", "err", err)
			}
			return
		}

		ev, err := wire.ParseEvent(msg)
		if err != nil {
			// Unknown or malformed events are skipped, not fatal.
			c.log.Debugw("skipping push payload", "err", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
