package devserver

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/auth"
	"github.com/worklinkhq/worklink/client/internal/httpx"
	"github.com/worklinkhq/worklink/client/internal/model"
	"github.com/worklinkhq/worklink/client/internal/wire"
)

// pageSize is the message history page length.
const pageSize = 20

const tokenTTL = 24 * time.Hour

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local development tool; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type conversation struct {
	id           string
	participants [2]string
	lastMessage  *model.LastMessage
	unread       map[string]int
	updatedAt    time.Time
}

// Server is an in-memory stand-in for the WorkLink backend: the REST catalog
// the client consumes plus the push channel. State lives for the process
// only. Not a production server.
type Server struct {
	log    *zap.SugaredLogger
	secret string
	hub    *Hub

	mu        sync.Mutex
	users     map[string]model.User
	convs     map[string]*conversation
	msgs      map[string][]model.Message
	notifs    map[string][]model.Notification
	notifConf map[string]string // notification id -> conversation id
}

func New(secret string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		log:       log,
		secret:    secret,
		hub:       NewHub(log),
		users:     make(map[string]model.User),
		convs:     make(map[string]*conversation),
		msgs:      make(map[string][]model.Message),
		notifs:    make(map[string][]model.Notification),
		notifConf: make(map[string]string),
	}
	s.hub.onFrame = s.handleFrame
	go s.hub.Run()
	return s
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/login", s.login)
	r.GET("/ws", s.serveWS)

	api := r.Group("/api", s.jwtMiddleware())
	api.GET("/conversations", s.listConversations)
	api.POST("/conversations", s.createConversation)
	api.GET("/conversations/:id/messages", s.listMessages)
	api.PATCH("/conversations/:id/read", s.markConversationRead)
	api.POST("/messages", s.sendMessage)
	api.GET("/notifications", s.listNotifications)
	api.PATCH("/notifications/:id/read", s.markNotificationRead)
	api.PATCH("/notifications/read-all", s.markAllNotificationsRead)
	api.DELETE("/notifications/:id", s.deleteNotification)

	return r
}

func (s *Server) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if len(h) < 8 || h[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := auth.ParseToken(s.secret, h[7:])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("uid", claims.UserID)
		c.Next()
	}
}

func (s *Server) userID(c *gin.Context) string {
	return c.GetString("uid")
}

type loginReq struct {
	UserID string `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Avatar string `json:"avatar"`
}

// login registers a user in memory and issues a token for it.
func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.users[req.UserID] = model.User{ID: req.UserID, Name: req.Name, Avatar: req.Avatar}
	s.mu.Unlock()

	token, err := auth.NewToken(s.secret, req.UserID, req.Name, tokenTTL)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	httpx.OK(c, gin.H{"token": token})
}

func (s *Server) serveWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		httpx.Err(c, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		httpx.Err(c, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &wsClient{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// handleFrame relays typing signals to the other conversation participant.
// Join and leave frames only matter to the client's own bookkeeping.
func (s *Server) handleFrame(userID string, frame wire.ClientFrame) {
	if frame.Type != wire.FrameTyping {
		return
	}

	s.mu.Lock()
	conv, ok := s.convs[frame.ConversationID]
	s.mu.Unlock()
	if !ok {
		return
	}

	for _, pid := range conv.participants {
		if pid == userID {
			continue
		}
		s.hub.Push(pid, map[string]any{
			"type":            wire.EventUserTyping,
			"conversation_id": frame.ConversationID,
			"user_id":         userID,
			"is_typing":       frame.IsTyping,
		})
	}
}

func (s *Server) listConversations(c *gin.Context) {
	uid := s.userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	var mine []*conversation
	for _, conv := range s.convs {
		if conv.participants[0] == uid || conv.participants[1] == uid {
			mine = append(mine, conv)
		}
	}
	sort.Slice(mine, func(i, j int) bool {
		return mine[i].updatedAt.After(mine[j].updatedAt)
	})

	list := make([]gin.H, 0, len(mine))
	for _, conv := range mine {
		list = append(list, s.conversationJSON(conv, uid))
	}
	httpx.OK(c, gin.H{"conversations": list})
}

type createConversationReq struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Content       string `json:"content" binding:"required"`
}

func (s *Server) createConversation(c *gin.Context) {
	uid := s.userID(c)
	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	if _, ok := s.users[req.ParticipantID]; !ok {
		s.mu.Unlock()
		httpx.Err(c, http.StatusBadRequest, "unknown participant")
		return
	}

	// reuse an existing conversation between the two users
	var conv *conversation
	for _, cv := range s.convs {
		if (cv.participants[0] == uid && cv.participants[1] == req.ParticipantID) ||
			(cv.participants[1] == uid && cv.participants[0] == req.ParticipantID) {
			conv = cv
			break
		}
	}
	if conv == nil {
		conv = &conversation{
			id:           uuid.NewString(),
			participants: [2]string{uid, req.ParticipantID},
			unread:       make(map[string]int),
			updatedAt:    time.Now().UTC(),
		}
		s.convs[conv.id] = conv
	}

	msg := s.storeMessage(conv, uid, req.Content)
	payload := s.conversationJSON(conv, uid)
	s.mu.Unlock()

	s.fanoutMessage(conv, msg)
	httpx.Created(c, gin.H{"conversation": payload})
}

func (s *Server) listMessages(c *gin.Context) {
	uid := s.userID(c)
	convID := c.Param("id")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[convID]
	if !ok {
		httpx.Err(c, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.participants[0] != uid && conv.participants[1] != uid {
		httpx.Err(c, http.StatusForbidden, "not a participant")
		return
	}

	all := s.msgs[convID]
	// page 1 is the newest window; each page reaches further back
	end := len(all) - (page-1)*pageSize
	if end < 0 {
		end = 0
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}

	list := make([]gin.H, 0, end-start)
	for _, m := range all[start:end] {
		list = append(list, messageJSON(m))
	}
	httpx.OK(c, gin.H{"messages": list, "has_more": start > 0})
}

func (s *Server) markConversationRead(c *gin.Context) {
	uid := s.userID(c)
	convID := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[convID]
	if !ok {
		httpx.Err(c, http.StatusNotFound, "conversation not found")
		return
	}
	conv.unread[uid] = 0

	// reading a conversation also reads its message notifications
	list := s.notifs[uid]
	for i := range list {
		if s.notifConf[list[i].ID] == convID {
			list[i].Read = true
		}
	}

	httpx.OK(c, gin.H{"ok": true})
}

type sendMessageReq struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Content        string `json:"content" binding:"required"`
	ClientID       string `json:"client_id"`
}

func (s *Server) sendMessage(c *gin.Context) {
	uid := s.userID(c)
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	conv, ok := s.convs[req.ConversationID]
	if !ok {
		s.mu.Unlock()
		httpx.Err(c, http.StatusNotFound, "conversation not found")
		return
	}
	if conv.participants[0] != uid && conv.participants[1] != uid {
		s.mu.Unlock()
		httpx.Err(c, http.StatusForbidden, "not a participant")
		return
	}
	msg := s.storeMessage(conv, uid, req.Content)
	s.mu.Unlock()

	s.fanoutMessage(conv, msg)
	httpx.Created(c, gin.H{"message": messageJSON(msg)})
}

// storeMessage appends a message, updates the preview and the recipient's
// unread count, and records a notification for the recipient. Caller holds mu.
func (s *Server) storeMessage(conv *conversation, senderID, content string) model.Message {
	now := time.Now().UTC()
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.id,
		Sender:         s.users[senderID],
		Content:        content,
		Type:           model.MessageText,
		CreatedAt:      now,
	}
	s.msgs[conv.id] = append(s.msgs[conv.id], msg)

	conv.lastMessage = &model.LastMessage{Content: content, SenderID: senderID, SentAt: now}
	conv.updatedAt = now

	for _, pid := range conv.participants {
		if pid == senderID {
			continue
		}
		conv.unread[pid]++
		n := model.Notification{
			ID:        uuid.NewString(),
			Type:      "message",
			Title:     "New message",
			Message:   s.users[senderID].Name + " sent you a message",
			CreatedAt: now,
		}
		s.notifs[pid] = append([]model.Notification{n}, s.notifs[pid]...)
		s.notifConf[n.ID] = conv.id
	}
	return msg
}

// fanoutMessage pushes the message to both participants (the sender receives
// its own echo) and a notification to the recipient.
func (s *Server) fanoutMessage(conv *conversation, msg model.Message) {
	for _, pid := range conv.participants {
		s.hub.Push(pid, map[string]any{
			"type":    wire.EventNewMessage,
			"message": messageJSON(msg),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range conv.participants {
		if pid == msg.Sender.ID {
			continue
		}
		if list := s.notifs[pid]; len(list) > 0 {
			s.hub.Push(pid, map[string]any{
				"type":         wire.EventNewNotification,
				"notification": notificationJSON(list[0]),
			})
		}
	}
}

func (s *Server) listNotifications(c *gin.Context) {
	uid := s.userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]gin.H, 0, len(s.notifs[uid]))
	for _, n := range s.notifs[uid] {
		list = append(list, notificationJSON(n))
	}
	httpx.OK(c, gin.H{"notifications": list})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	uid := s.userID(c)
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifs[uid]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			httpx.OK(c, gin.H{"ok": true})
			return
		}
	}
	httpx.Err(c, http.StatusNotFound, "notification not found")
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	uid := s.userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifs[uid]
	for i := range list {
		list[i].Read = true
	}
	httpx.OK(c, gin.H{"ok": true})
}

func (s *Server) deleteNotification(c *gin.Context) {
	uid := s.userID(c)
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifs[uid]
	for i := range list {
		if list[i].ID == id {
			s.notifs[uid] = append(list[:i], list[i+1:]...)
			delete(s.notifConf, id)
			httpx.OK(c, gin.H{"ok": true})
			return
		}
	}
	httpx.Err(c, http.StatusNotFound, "notification not found")
}

// conversationJSON renders one conversation summary for a viewer. Caller
// holds mu.
func (s *Server) conversationJSON(conv *conversation, viewerID string) gin.H {
	other := conv.participants[0]
	if other == viewerID {
		other = conv.participants[1]
	}
	out := gin.H{
		"id":                conv.id,
		"participants":      []string{conv.participants[0], conv.participants[1]},
		"other_participant": userJSON(s.users[other]),
		"unread_count":      conv.unread[viewerID],
		"updated_at":        conv.updatedAt.Format(time.RFC3339Nano),
	}
	if conv.lastMessage != nil {
		out["last_message"] = gin.H{
			"content":   conv.lastMessage.Content,
			"sender_id": conv.lastMessage.SenderID,
			"sent_at":   conv.lastMessage.SentAt.Format(time.RFC3339Nano),
		}
	}
	return out
}

func userJSON(u model.User) gin.H {
	out := gin.H{"id": u.ID, "name": u.Name}
	if u.Avatar != "" {
		// served the way the production backend does: an object holding the
		// relative upload path
		out["avatar"] = gin.H{"path": u.Avatar}
	}
	return out
}

func messageJSON(m model.Message) gin.H {
	return gin.H{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender":          userJSON(m.Sender),
		"content":         m.Content,
		"type":            m.Type,
		"created_at":      m.CreatedAt.Format(time.RFC3339Nano),
		"read":            m.Read,
	}
}

func notificationJSON(n model.Notification) gin.H {
	return gin.H{
		"id":         n.ID,
		"type":       n.Type,
		"title":      n.Title,
		"message":    n.Message,
		"read":       n.Read,
		"created_at": n.CreatedAt.Format(time.RFC3339Nano),
	}
}
