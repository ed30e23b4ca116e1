package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"telederm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakePresence struct {
	online map[uint]bool
	sent   map[uint][][]byte
}

func newFakePresence(online ...uint) *fakePresence {
	f := &fakePresence{online: make(map[uint]bool), sent: make(map[uint][][]byte)}
	for _, id := range online {
		f.online[id] = true
	}
	return f
}

func (f *fakePresence) SendToUser(userID uint, data []byte) bool {
	if !f.online[userID] {
		return false
	}
	f.sent[userID] = append(f.sent[userID], data)
	return true
}

type fakeStore struct {
	mu        sync.Mutex
	inserted  []*Notification
	insertErr error
}

func (f *fakeStore) Insert(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now()
	cp := *n
	f.inserted = append(f.inserted, &cp)
	return nil
}

func (f *fakeStore) ListUnread(_ context.Context, userID uint) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, n := range f.inserted {
		if n.UserID == userID && !n.Read {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, id string, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.inserted {
		if n.ID.Hex() == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return models.NewNotFoundError("Notification", id)
}

func TestSendToUserOnlineDeliversDirectly(t *testing.T) {
	presence := newFakePresence(5)
	store := &fakeStore{}
	svc := NewService(presence, store)

	svc.SendToUser(context.Background(), 5, NewDoctorMessage("Dr. Smith", "c1", "hello"))

	require.Len(t, presence.sent[5], 1)
	assert.Empty(t, store.inserted)

	var wire struct {
		Type    string       `json:"type"`
		Payload Notification `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(presence.sent[5][0], &wire))
	assert.Equal(t, "notification", wire.Type)
	assert.Equal(t, TypeDoctorMessage, wire.Payload.Type)
	assert.Equal(t, "New message from Dr. Smith", wire.Payload.Title)
	assert.Equal(t, "c1", wire.Payload.Data["conversationId"])
}

func TestSendToUserOfflinePersists(t *testing.T) {
	presence := newFakePresence()
	store := &fakeStore{}
	svc := NewService(presence, store)

	svc.SendToUser(context.Background(), 5, NewDiagnosisReady("d1"))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, uint(5), store.inserted[0].UserID)
	assert.Equal(t, TypeDiagnosisReady, store.inserted[0].Type)
}

func TestSendToUserPersistFailureSwallowed(t *testing.T) {
	presence := newFakePresence()
	store := &fakeStore{insertErr: errors.New("mongo down")}
	svc := NewService(presence, store)

	// Must not panic or propagate the store failure.
	svc.SendToUser(context.Background(), 5, NewAppointmentUpdate("a1", "confirmed"))
	assert.Empty(t, store.inserted)
}

func TestListUnreadAndMarkRead(t *testing.T) {
	presence := newFakePresence()
	store := &fakeStore{}
	svc := NewService(presence, store)
	ctx := context.Background()

	svc.SendToUser(ctx, 5, NewDoctorMessage("Dr. Smith", "c1", "one"))
	svc.SendToUser(ctx, 5, NewDoctorMessage("Dr. Smith", "c1", "two"))
	svc.SendToUser(ctx, 6, NewDoctorMessage("Dr. Smith", "c2", "other user"))

	unread, err := svc.ListUnread(ctx, 5)
	require.NoError(t, err)
	require.Len(t, unread, 2)

	require.NoError(t, svc.MarkRead(ctx, unread[0].ID.Hex(), 5))

	unread, err = svc.ListUnread(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	// Another user cannot ack someone else's notification.
	err = svc.MarkRead(ctx, unread[0].ID.Hex(), 6)
	assert.Error(t, err)
}

func TestDoctorMessagePreviewTruncated(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	n := NewDoctorMessage("Dr. Smith", "c1", string(long))
	assert.Len(t, n.Message, 120)
}
