package state

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/model"
	"github.com/worklinkhq/worklink/client/internal/wire"
)

// API is the REST surface the App consumes. Implemented by api.Client.
type API interface {
	Conversations(ctx context.Context) ([]model.Conversation, error)
	Messages(ctx context.Context, conversationID string, page int) ([]model.Message, bool, error)
	SendMessage(ctx context.Context, conversationID, content, clientID string) (model.Message, error)
	CreateConversation(ctx context.Context, participantID, content string) (model.Conversation, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// Emitter is the outbound half of the push transport. Implemented by
// transport.Client.
type Emitter interface {
	EmitTyping(conversationID string, typing bool) error
	JoinConversation(conversationID string) error
	LeaveConversation(conversationID string) error
}

// Cache is the optional local write-through store consulted when a fetch
// fails and the stores are still empty. Implemented by cache.Cache.
type Cache interface {
	SaveConversations([]model.Conversation) error
	LoadConversations() ([]model.Conversation, error)
	SaveMessages(conversationID string, msgs []model.Message) error
	SaveNotifications([]model.Notification) error
	LoadNotifications() ([]model.Notification, error)
	DeleteNotification(id string) error
}

var ErrEmptyMessage = errors.New("message content is empty")

// Errors holds the per-store error text surfaced to the UI. Failed
// operations leave store contents untouched and record the message here.
type Errors struct {
	Conversations string
	Messages      string
	Notifications string
}

// App is the composition root owning the four stores. One mutex serializes
// every command and push handler, the Go analog of the single UI event loop
// the stores were designed for; REST calls themselves run outside the lock
// and their results are guarded at apply time.
type App struct {
	mu sync.Mutex

	api     API
	emitter Emitter
	cache   Cache
	log     *zap.SugaredLogger
	userID  string

	conversations ConversationStore
	messages      MessageStore
	notifications NotificationStore
	presence      PresenceStore

	errs      Errors
	connected bool
}

// NewApp wires the stores to their collaborators. emitter and cache may be
// nil (headless tests, cache disabled).
func NewApp(userID string, api API, emitter Emitter, cache Cache, log *zap.SugaredLogger) *App {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &App{
		api:     api,
		emitter: emitter,
		cache:   cache,
		log:     log,
		userID:  userID,
	}
	a.messages.SetActive("")
	return a
}

// UserID returns the id of the signed-in user.
func (a *App) UserID() string { return a.userID }

// LoadConversations replaces the conversation list from the server. On
// failure the error is recorded and existing state stays put; if the list
// is still empty, the local cache backfills a stale view.
func (a *App) LoadConversations(ctx context.Context) error {
	list, err := a.api.Conversations(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.errs.Conversations = err.Error()
		if len(a.conversations.All()) == 0 && a.cache != nil {
			if cached, cerr := a.cache.LoadConversations(); cerr == nil && len(cached) > 0 {
				a.conversations.SetAll(cached)
				a.log.Infow("serving conversations from cache", "count", len(cached))
			}
		}
		return err
	}
	a.errs.Conversations = ""
	a.conversations.SetAll(list)
	a.saveConversations()
	return nil
}

// OpenConversation makes a conversation active, announces the switch over
// the transport and loads its first history page.
func (a *App) OpenConversation(ctx context.Context, conversationID string) error {
	a.mu.Lock()
	prev := a.messages.ActiveID()
	a.messages.SetActive(conversationID)
	a.mu.Unlock()

	if a.emitter != nil {
		if prev != "" && prev != conversationID {
			if err := a.emitter.LeaveConversation(prev); err != nil {
				a.log.Warnw("leave conversation signal failed", "conversation", prev, "err", err)
			}
		}
		if err := a.emitter.JoinConversation(conversationID); err != nil {
			a.log.Warnw("join conversation signal failed", "conversation", conversationID, "err", err)
		}
	}

	return a.loadPage(ctx, conversationID, 1)
}

// CloseConversation leaves the active conversation, if any.
func (a *App) CloseConversation() {
	a.mu.Lock()
	prev := a.messages.ActiveID()
	a.messages.SetActive("")
	a.mu.Unlock()

	if prev != "" && a.emitter != nil {
		if err := a.emitter.LeaveConversation(prev); err != nil {
			a.log.Warnw("leave conversation signal failed", "conversation", prev, "err", err)
		}
	}
}

// LoadOlderMessages fetches the next history page of the active conversation.
func (a *App) LoadOlderMessages(ctx context.Context) error {
	a.mu.Lock()
	id := a.messages.ActiveID()
	page := a.messages.Page() + 1
	more := a.messages.HasMore()
	a.mu.Unlock()

	if id == "" || !more {
		return nil
	}
	return a.loadPage(ctx, id, page)
}

func (a *App) loadPage(ctx context.Context, conversationID string, page int) error {
	msgs, hasMore, err := a.api.Messages(ctx, conversationID, page)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.errs.Messages = err.Error()
		return err
	}
	a.errs.Messages = ""
	// Discarded when the user switched away while the fetch was in flight.
	if !a.messages.SetPage(conversationID, page, msgs, hasMore) {
		a.log.Debugw("dropping stale history page", "conversation", conversationID, "page", page)
		return nil
	}
	a.saveMessages(conversationID)
	return nil
}

// SendMessage posts a message to the active conversation. Nothing is added
// optimistically: on failure the list is untouched so the UI keeps the
// compose text for a manual retry.
func (a *App) SendMessage(ctx context.Context, content string) (model.Message, error) {
	if content == "" {
		return model.Message{}, ErrEmptyMessage
	}

	a.mu.Lock()
	id := a.messages.ActiveID()
	a.mu.Unlock()
	if id == "" {
		return model.Message{}, errors.New("no active conversation")
	}

	msg, err := a.api.SendMessage(ctx, id, content, uuid.NewString())

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.errs.Messages = err.Error()
		return model.Message{}, err
	}
	a.errs.Messages = ""
	if a.messages.ActiveID() == msg.ConversationID {
		a.messages.AppendSent(msg)
		a.saveMessages(msg.ConversationID)
	}
	a.conversations.ApplySent(msg)
	a.saveConversations()
	return msg, nil
}

// StartConversation creates a conversation with another user, makes it
// active and seeds it with the initial message.
func (a *App) StartConversation(ctx context.Context, participantID, content string) (model.Conversation, error) {
	if content == "" {
		return model.Conversation{}, ErrEmptyMessage
	}

	conv, err := a.api.CreateConversation(ctx, participantID, content)

	a.mu.Lock()
	if err != nil {
		a.errs.Conversations = err.Error()
		a.mu.Unlock()
		return model.Conversation{}, err
	}
	a.errs.Conversations = ""
	a.conversations.Prepend(conv)
	a.messages.SetActive(conv.ID)
	a.saveConversations()
	a.mu.Unlock()

	if a.emitter != nil {
		if err := a.emitter.JoinConversation(conv.ID); err != nil {
			a.log.Warnw("join conversation signal failed", "conversation", conv.ID, "err", err)
		}
	}
	return conv, nil
}

// MarkConversationRead acknowledges a conversation as read. The server
// couples this with marking the related notifications read, so the
// notification list is refetched afterwards instead of trusting local state.
func (a *App) MarkConversationRead(ctx context.Context, conversationID string) error {
	if err := a.api.MarkConversationRead(ctx, conversationID); err != nil {
		a.mu.Lock()
		a.errs.Conversations = err.Error()
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.errs.Conversations = ""
	a.conversations.MarkRead(conversationID)
	if a.messages.ActiveID() == conversationID {
		a.messages.MarkAllRead()
	}
	a.saveConversations()
	a.mu.Unlock()

	if err := a.LoadNotifications(ctx); err != nil {
		a.log.Warnw("notification refresh after mark-read failed", "err", err)
	}
	return nil
}

// LoadNotifications replaces the notification list from the server, falling
// back to the cache for an empty store on failure.
func (a *App) LoadNotifications(ctx context.Context) error {
	list, err := a.api.Notifications(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.errs.Notifications = err.Error()
		if len(a.notifications.All()) == 0 && a.cache != nil {
			if cached, cerr := a.cache.LoadNotifications(); cerr == nil && len(cached) > 0 {
				a.notifications.SetAll(cached)
				a.log.Infow("serving notifications from cache", "count", len(cached))
			}
		}
		return err
	}
	a.errs.Notifications = ""
	a.notifications.SetAll(list)
	a.saveNotifications()
	return nil
}

// MarkNotificationRead acknowledges one notification.
func (a *App) MarkNotificationRead(ctx context.Context, id string) error {
	if err := a.api.MarkNotificationRead(ctx, id); err != nil {
		a.mu.Lock()
		a.errs.Notifications = err.Error()
		a.mu.Unlock()
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs.Notifications = ""
	a.notifications.MarkRead(id)
	a.saveNotifications()
	return nil
}

// MarkAllNotificationsRead acknowledges everything.
func (a *App) MarkAllNotificationsRead(ctx context.Context) error {
	if err := a.api.MarkAllNotificationsRead(ctx); err != nil {
		a.mu.Lock()
		a.errs.Notifications = err.Error()
		a.mu.Unlock()
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs.Notifications = ""
	a.notifications.MarkAllRead()
	a.saveNotifications()
	return nil
}

// DeleteNotification removes one notification.
func (a *App) DeleteNotification(ctx context.Context, id string) error {
	if err := a.api.DeleteNotification(ctx, id); err != nil {
		a.mu.Lock()
		a.errs.Notifications = err.Error()
		a.mu.Unlock()
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs.Notifications = ""
	a.notifications.Remove(id)
	if a.cache != nil {
		if err := a.cache.DeleteNotification(id); err != nil {
			a.log.Warnw("cache notification delete failed", "err", err)
		}
	}
	return nil
}

// SetTyping relays the local user's typing state for the active conversation.
func (a *App) SetTyping(typing bool) {
	a.mu.Lock()
	id := a.messages.ActiveID()
	a.mu.Unlock()
	if id == "" || a.emitter == nil {
		return
	}
	if err := a.emitter.EmitTyping(id, typing); err != nil {
		a.log.Warnw("typing signal failed", "conversation", id, "err", err)
	}
}

// HandleEvent merges one push delivery into the stores. Push events and user
// commands share this one serialized path, so both are testable with the
// same harness.
func (a *App) HandleEvent(ev wire.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case wire.EventNewMessage:
		if ev.Message == nil {
			return
		}
		m := *ev.Message
		if a.messages.AppendIncoming(m) {
			a.saveMessages(m.ConversationID)
		}
		// The server echoes sends back to their author; an echo updates the
		// preview but never counts as unread.
		if m.Sender.ID == a.userID {
			if a.conversations.ApplySent(m) {
				a.saveConversations()
			} else {
				a.log.Debugw("echo for unknown conversation dropped", "conversation", m.ConversationID)
			}
			return
		}
		if !a.conversations.ApplyIncoming(m, a.messages.ActiveID()) {
			a.log.Debugw("message for unknown conversation dropped", "conversation", m.ConversationID)
			return
		}
		a.saveConversations()

	case wire.EventNewNotification:
		if ev.Notification == nil {
			return
		}
		a.notifications.Push(*ev.Notification)

	case wire.EventUserOnline:
		if ev.Online != nil {
			a.presence.SetOnline(ev.Online)
			return
		}
		a.presence.AddOnline(ev.UserID)

	case wire.EventUserOffline:
		a.presence.RemoveOnline(ev.UserID)

	case wire.EventUserTyping:
		a.presence.SetTyping(ev.ConversationID, ev.UserID, ev.Typing)
	}
}

// Run consumes push events until the channel closes or ctx is done.
func (a *App) Run(ctx context.Context, events <-chan wire.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				a.HandleDisconnect()
				return
			}
			a.HandleEvent(ev)
		}
	}
}

// HandleConnect marks the transport up and refreshes the REST-backed stores;
// events missed while disconnected are not replayed, so a full refetch is
// the only way to bring the unread counts back in line.
func (a *App) HandleConnect(ctx context.Context) {
	a.mu.Lock()
	a.connected = true
	a.presence.Reset()
	a.mu.Unlock()

	if err := a.LoadConversations(ctx); err != nil {
		a.log.Warnw("conversation refresh on connect failed", "err", err)
	}
	if err := a.LoadNotifications(ctx); err != nil {
		a.log.Warnw("notification refresh on connect failed", "err", err)
	}
}

// HandleDisconnect marks the transport down and clears the derived-only
// presence state, which has no source of truth to survive the gap.
func (a *App) HandleDisconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.presence.Reset()
}

// Connected reports the transport's last known state.
func (a *App) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Snapshot accessors. Each returns a copy safe to read concurrently with
// ongoing dispatch.

func (a *App) Conversations() []model.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversations.All()
}

func (a *App) TotalUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversations.TotalUnread()
}

func (a *App) ActiveConversationID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages.ActiveID()
}

func (a *App) Messages() []model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages.All()
}

func (a *App) HasMoreHistory() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages.HasMore()
}

func (a *App) Notifications() []model.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notifications.All()
}

func (a *App) RealtimeNotifications() []model.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notifications.Realtime()
}

func (a *App) UnreadNotifications() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notifications.Unread()
}

func (a *App) OnlineUsers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presence.Online()
}

func (a *App) IsOnline(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presence.IsOnline(userID)
}

func (a *App) TypingIn(conversationID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.presence.TypingIn(conversationID)
}

// Errors returns the current per-store error texts.
func (a *App) Errors() Errors {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errs
}

// ClearErrors resets all surfaced error texts, typically after the UI has
// shown its toast.
func (a *App) ClearErrors() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errs = Errors{}
}

// Cache write-through helpers. Cache failures are logged, never surfaced;
// the cache is an availability aid, not a source of truth. Callers hold mu.

func (a *App) saveConversations() {
	if a.cache == nil {
		return
	}
	if err := a.cache.SaveConversations(a.conversations.All()); err != nil {
		a.log.Warnw("cache conversation save failed", "err", err)
	}
}

func (a *App) saveMessages(conversationID string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.SaveMessages(conversationID, a.messages.All()); err != nil {
		a.log.Warnw("cache message save failed", "err", err)
	}
}

func (a *App) saveNotifications() {
	if a.cache == nil {
		return
	}
	if err := a.cache.SaveNotifications(a.notifications.All()); err != nil {
		a.log.Warnw("cache notification save failed", "err", err)
	}
}
