package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"telederm/internal/chat"
	"telederm/internal/config"
	"telederm/internal/directory"
	"telederm/internal/middleware"
	"telederm/internal/models"
	"telederm/internal/notifications"
	"telederm/internal/realtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// memConvStore is an in-memory ConversationStore for handler tests.
type memConvStore struct {
	mu     sync.Mutex
	byPair map[string]*chat.Conversation
}

func newMemConvStore() *memConvStore {
	return &memConvStore{byPair: make(map[string]*chat.Conversation)}
}

func (f *memConvStore) find(id string) *chat.Conversation {
	for _, c := range f.byPair {
		if c.ID.Hex() == id {
			return c
		}
	}
	return nil
}

func (f *memConvStore) FindOrCreate(_ context.Context, a, b uint) (*chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := chat.PairKey(a, b)
	if c, ok := f.byPair[key]; ok {
		cp := *c
		return &cp, nil
	}
	now := time.Now()
	c := &chat.Conversation{
		ID:           primitive.NewObjectID(),
		PairKey:      key,
		Participants: []chat.Participant{{UserID: a}, {UserID: b}},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.byPair[key] = c
	cp := *c
	return &cp, nil
}

func (f *memConvStore) ListForUser(_ context.Context, userID uint) ([]chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Conversation
	for _, c := range f.byPair {
		if c.IsActive && c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *memConvStore) GetIfParticipant(_ context.Context, id string, userID uint) (*chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return nil, models.NewNotFoundError("Conversation", id)
	}
	if !c.HasParticipant(userID) {
		return nil, models.NewForbiddenError("you are not a participant of this conversation")
	}
	cp := *c
	return &cp, nil
}

func (f *memConvStore) RecordNewMessage(_ context.Context, id, messageID string, senderID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return models.NewNotFoundError("Conversation", id)
	}
	oid, _ := primitive.ObjectIDFromHex(messageID)
	c.LastMessageID = oid
	c.UpdatedAt = time.Now()
	for i := range c.Participants {
		if c.Participants[i].UserID != senderID {
			c.Participants[i].UnreadCount++
		}
	}
	return nil
}

func (f *memConvStore) ResetUnread(_ context.Context, id string, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return models.NewNotFoundError("Conversation", id)
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].UnreadCount = 0
			c.Participants[i].LastReadAt = time.Now()
		}
	}
	return nil
}

// memMsgStore is an in-memory MessageStore for handler tests.
type memMsgStore struct {
	mu   sync.Mutex
	msgs []*chat.Message
}

func (f *memMsgStore) find(id string) *chat.Message {
	for _, m := range f.msgs {
		if m.ID.Hex() == id {
			return m
		}
	}
	return nil
}

func (f *memMsgStore) Append(_ context.Context, msg *chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	msg.Status = chat.StatusSent
	msg.CreatedAt = time.Now()
	cp := *msg
	f.msgs = append(f.msgs, &cp)
	return nil
}

func (f *memMsgStore) ListByConversation(_ context.Context, convID string, page, limit int) ([]chat.Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []chat.Message
	for _, m := range f.msgs {
		if m.ConversationID.Hex() == convID {
			all = append(all, *m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *memMsgStore) GetByID(_ context.Context, id string) (*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return nil, models.NewNotFoundError("Message", id)
	}
	cp := *m
	return &cp, nil
}

func (f *memMsgStore) GetByIDs(_ context.Context, ids []string) (map[string]*chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*chat.Message, len(ids))
	for _, id := range ids {
		if m := f.find(id); m != nil {
			cp := *m
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *memMsgStore) SetStatus(_ context.Context, id string, readerID uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return models.NewNotFoundError("Message", id)
	}
	if status == chat.StatusRead && m.ReadByUser(readerID) {
		return nil
	}
	m.Status = status
	if status == chat.StatusRead {
		m.ReadBy = append(m.ReadBy, chat.ReadReceipt{UserID: readerID, Timestamp: time.Now()})
	}
	return nil
}

func (f *memMsgStore) BulkMarkRead(_ context.Context, convID string, readerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.ConversationID.Hex() != convID || m.SenderID == readerID || m.ReadByUser(readerID) {
			continue
		}
		m.Status = chat.StatusRead
		m.ReadBy = append(m.ReadBy, chat.ReadReceipt{UserID: readerID, Timestamp: time.Now()})
		n++
	}
	return n, nil
}

func (f *memMsgStore) SetReaction(_ context.Context, id string, userID uint, reactionType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return models.NewNotFoundError("Message", id)
	}
	kept := m.Reactions[:0]
	for _, r := range m.Reactions {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	m.Reactions = append(kept, chat.Reaction{UserID: userID, Type: reactionType, Timestamp: time.Now()})
	return nil
}

func (f *memMsgStore) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.msgs {
		if m.ID.Hex() == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			break
		}
	}
	return nil
}

// memNotifStore is an in-memory notifications.Store.
type memNotifStore struct {
	mu     sync.Mutex
	notifs []notifications.Notification
}

func (f *memNotifStore) Insert(_ context.Context, n *notifications.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.Read = false
	n.CreatedAt = time.Now()
	f.notifs = append(f.notifs, *n)
	return nil
}

func (f *memNotifStore) ListUnread(_ context.Context, userID uint) ([]notifications.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notifications.Notification
	for _, n := range f.notifs {
		if n.UserID == userID && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *memNotifStore) MarkRead(_ context.Context, id string, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifs {
		if f.notifs[i].ID.Hex() == id && f.notifs[i].UserID == userID {
			f.notifs[i].Read = true
			return nil
		}
	}
	return models.NewNotFoundError("Notification", id)
}

type testDeps struct {
	convs  *memConvStore
	msgs   *memMsgStore
	notifs *memNotifStore
}

func newTestServer(t *testing.T) (*Server, *fiber.App, *testDeps) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	users := []models.User{
		{Username: "pat", Email: "pat@example.com", Password: "x", DisplayName: "Pat", Role: models.RolePatient},
		{Username: "drsmith", Email: "smith@example.com", Password: "x", DisplayName: "Dr. Smith", Role: models.RoleDoctor},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	cfg := &config.Config{
		Port:      "0",
		JWTSecret: "test-secret",
		Env:       "test",
	}
	middleware.InitMiddleware(cfg)

	deps := &testDeps{
		convs:  newMemConvStore(),
		msgs:   &memMsgStore{},
		notifs: &memNotifStore{},
	}

	s := &Server{config: cfg, db: db}
	s.dir = directory.NewGormDirectory(db)
	s.chatService = chat.NewService(deps.convs, deps.msgs, s.dir)
	s.hub = realtime.NewHub()
	s.notifier = realtime.NewNotifier(nil)
	s.notifSvc = notifications.NewService(s.hub, deps.notifs)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.SetupRoutes(app)
	return s, app, deps
}

const (
	patientID = uint(1)
	doctorID  = uint(2)
)

func signToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func TestLivenessEndpoint(t *testing.T) {
	_, app, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp, env := doJSON(t, app, http.MethodGet, "/api/conversations/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/conversations/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMessagingFlow(t *testing.T) {
	_, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)
	docToken := signToken(t, doctorID, models.RoleDoctor)

	// Patient opens the conversation.
	resp, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": doctorID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)

	// Patient sends a message.
	resp, env = doJSON(t, app, http.MethodPost, "/api/conversations/"+created.ID+"/messages", patToken,
		fiber.Map{"content": "my rash is back", "type": chat.MessageTypeText})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent chat.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &sent))
	assert.Equal(t, chat.StatusSent, sent.Status)
	assert.Equal(t, "Pat", sent.SenderName)

	// Doctor sees one unread conversation.
	resp, env = doJSON(t, app, http.MethodGet, "/api/conversations/", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var convs []chat.ConversationView
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
	assert.Equal(t, patientID, convs[0].ParticipantID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "my rash is back", convs[0].LastMessage.Content)

	// Fetching the history marks messages read and resets the counter.
	resp, env = doJSON(t, app, http.MethodGet, "/api/conversations/"+created.ID+"/messages", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page chat.MessagePage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, chat.StatusRead, page.Messages[0].Status)

	resp, env = doJSON(t, app, http.MethodGet, "/api/conversations/", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)

	// Senders cannot advance their own message status.
	resp, env = doJSON(t, app, http.MethodPut, "/api/messages/"+sent.ID+"/status", patToken,
		fiber.Map{"status": chat.StatusRead})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, env.Code)
}

func TestSendMessageValidation(t *testing.T) {
	_, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)

	_, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": doctorID})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	resp, env := doJSON(t, app, http.MethodPost, "/api/conversations/"+created.ID+"/messages", patToken,
		fiber.Map{"content": "   ", "type": chat.MessageTypeText})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, env.Code)
}

func TestCreateConversationWithSelf(t *testing.T) {
	_, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)

	resp, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": patientID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, env.Code)
}

func TestReactionFlow(t *testing.T) {
	_, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)
	docToken := signToken(t, doctorID, models.RoleDoctor)

	_, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": doctorID})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	_, env = doJSON(t, app, http.MethodPost, "/api/conversations/"+created.ID+"/messages", patToken,
		fiber.Map{"content": "hi", "type": chat.MessageTypeText})
	var sent chat.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &sent))

	resp, _ := doJSON(t, app, http.MethodPut, "/api/messages/"+sent.ID+"/reaction", docToken,
		fiber.Map{"reaction": "👍"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Reacting to your own message is rejected.
	resp, env = doJSON(t, app, http.MethodPut, "/api/messages/"+sent.ID+"/reaction", patToken,
		fiber.Map{"reaction": "👍"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, env.Code)
}

func TestOfflineRecipientGetsNotification(t *testing.T) {
	_, app, deps := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)
	docToken := signToken(t, doctorID, models.RoleDoctor)

	_, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": doctorID})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	// Doctor has no websocket connection, so the message falls back to a
	// persisted notification.
	_, _ = doJSON(t, app, http.MethodPost, "/api/conversations/"+created.ID+"/messages", patToken,
		fiber.Map{"content": "please take a look", "type": chat.MessageTypeText})

	require.Len(t, deps.notifs.notifs, 1)
	stored := deps.notifs.notifs[0]
	assert.Equal(t, doctorID, stored.UserID)
	assert.Equal(t, notifications.TypeDoctorMessage, stored.Type)

	resp, env := doJSON(t, app, http.MethodGet, "/api/notifications/", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []notifications.Notification
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/notifications/"+listed[0].ID.Hex()+"/read", docToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodGet, "/api/notifications/", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed = nil
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Empty(t, listed)
}

func TestNotificationReadCrossUserDenied(t *testing.T) {
	_, app, deps := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)

	_, env := doJSON(t, app, http.MethodPost, "/api/conversations/", patToken,
		fiber.Map{"participantId": doctorID})
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	_, _ = doJSON(t, app, http.MethodPost, "/api/conversations/"+created.ID+"/messages", patToken,
		fiber.Map{"content": "hello", "type": chat.MessageTypeText})
	require.Len(t, deps.notifs.notifs, 1)

	// The patient cannot acknowledge the doctor's notification.
	resp, env := doJSON(t, app, http.MethodPut,
		"/api/notifications/"+deps.notifs.notifs[0].ID.Hex()+"/read", patToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, env.Code)
}

func TestGetMyProfile(t *testing.T) {
	_, app, _ := newTestServer(t)
	docToken := signToken(t, doctorID, models.RoleDoctor)

	resp, env := doJSON(t, app, http.MethodGet, "/api/users/me", docToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var profile directory.Profile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, doctorID, profile.ID)
	assert.Equal(t, "Dr. Smith", profile.DisplayName)
	assert.Equal(t, models.RoleDoctor, profile.Role)
}

func TestIssueWSTicket(t *testing.T) {
	s, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)

	// Without a ticket store the endpoint degrades loudly.
	resp, _ := doJSON(t, app, http.MethodPost, "/api/ws/ticket", patToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	mr := miniredis.RunT(t)
	s.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	resp, env := doJSON(t, app, http.MethodPost, "/api/ws/ticket", patToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Ticket)

	stored, err := mr.Get("ws_ticket:" + out.Ticket)
	require.NoError(t, err)
	assert.Equal(t, "1", stored)
	assert.Positive(t, mr.TTL("ws_ticket:"+out.Ticket))
}

func TestWSQueryTokenAuth(t *testing.T) {
	_, app, _ := newTestServer(t)
	tok := signToken(t, patientID, models.RolePatient)

	// A signed token in the query string passes auth on websocket paths.
	req := httptest.NewRequest(http.MethodGet, "/api/ws/chat?token="+tok, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)

	// Everywhere else the query string is ignored.
	req = httptest.NewRequest(http.MethodGet, "/api/users/me?token="+tok, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSTicketSingleUse(t *testing.T) {
	s, app, _ := newTestServer(t)
	patToken := signToken(t, patientID, models.RolePatient)

	mr := miniredis.RunT(t)
	s.redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	_, env := doJSON(t, app, http.MethodPost, "/api/ws/ticket", patToken, nil)
	var out struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))

	// A ticket authenticates a request on a ws path exactly once. The
	// upgrade itself fails in app.Test, but passing auth means we reach the
	// handler (426 Upgrade Required) instead of 401.
	req := httptest.NewRequest(http.MethodGet, "/api/ws/chat?ticket="+out.Ticket, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/ws/chat?ticket="+out.Ticket, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
