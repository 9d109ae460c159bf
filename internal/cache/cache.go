package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/worklinkhq/worklink/client/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Cache is the local write-through store backing the stale-data fallback:
// when a fetch fails, the UI renders whatever the last successful sync left
// here instead of blanking the view.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at the given DSN.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec(`PRAGMA journal_mode=WAL;`)
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000;`)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveConversations upserts the given conversation snapshots.
func (c *Cache) SaveConversations(list []model.Conversation) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin conversation save: %w", err)
	}
	defer tx.Rollback()

	for _, conv := range list {
		payload, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("marshal conversation %q: %w", conv.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO conversations (id, payload, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
			conv.ID, string(payload), conv.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert conversation %q: %w", conv.ID, err)
		}
	}

	return tx.Commit()
}

// LoadConversations returns cached conversations, most recently active first.
func (c *Cache) LoadConversations() ([]model.Conversation, error) {
	rows, err := c.db.Query(`SELECT payload FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query cached conversations: %w", err)
	}
	defer rows.Close()

	var list []model.Conversation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached conversation: %w", err)
		}
		var conv model.Conversation
		if err := json.Unmarshal([]byte(payload), &conv); err != nil {
			return nil, fmt.Errorf("unmarshal cached conversation: %w", err)
		}
		list = append(list, conv)
	}
	return list, rows.Err()
}

// SaveMessages upserts the fetched window of one conversation's history.
func (c *Cache) SaveMessages(conversationID string, msgs []model.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message save: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message %q: %w", m.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO messages (id, conversation_id, payload, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET payload=excluded.payload`,
			m.ID, conversationID, string(payload), m.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert message %q: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// LoadMessages returns up to limit cached messages of a conversation in
// chronological order. Zero or negative limit means no bound.
func (c *Cache) LoadMessages(conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.Query(
		`SELECT payload FROM (
			SELECT payload, created_at FROM messages
			WHERE conversation_id=? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cached messages: %w", err)
	}
	defer rows.Close()

	var list []model.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached message: %w", err)
		}
		var m model.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("unmarshal cached message: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// SaveNotifications upserts the given notification snapshots.
func (c *Cache) SaveNotifications(list []model.Notification) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin notification save: %w", err)
	}
	defer tx.Rollback()

	for _, n := range list {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification %q: %w", n.ID, err)
		}
		_, err = tx.Exec(
			`INSERT INTO notifications (id, payload, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET payload=excluded.payload`,
			n.ID, string(payload), n.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert notification %q: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// LoadNotifications returns cached notifications, newest first.
func (c *Cache) LoadNotifications() ([]model.Notification, error) {
	rows, err := c.db.Query(`SELECT payload FROM notifications ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query cached notifications: %w", err)
	}
	defer rows.Close()

	var list []model.Notification
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan cached notification: %w", err)
		}
		var n model.Notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			return nil, fmt.Errorf("unmarshal cached notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// DeleteNotification removes one cached notification.
func (c *Cache) DeleteNotification(id string) error {
	if _, err := c.db.Exec(`DELETE FROM notifications WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete cached notification %q: %w", id, err)
	}
	return nil
}
