// Package chat implements the messaging core: two-party conversations,
// message history with delivery status, unread counters and reactions.
package chat

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types accepted on append.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message delivery states. Transitions only move forward.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

var statusRank = map[string]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// ValidStatus reports whether s is a known delivery state.
func ValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// StatusAdvances reports whether moving from current to target is a forward
// transition. Equal or backward targets do not advance.
func StatusAdvances(current, target string) bool {
	return statusRank[target] > statusRank[current]
}

// ValidMessageType reports whether t is an accepted message type.
func ValidMessageType(t string) bool {
	return t == MessageTypeText || t == MessageTypeImage || t == MessageTypeFile
}

// PairKey builds the order-independent identity of a participant pair. It
// backs a unique index so concurrent conversation creation for the same pair
// converges on one document.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Participant is one side of a conversation with its per-user read state.
type Participant struct {
	UserID      uint      `bson:"user_id" json:"userId"`
	UnreadCount int       `bson:"unread_count" json:"unreadCount"`
	LastReadAt  time.Time `bson:"last_read_at,omitempty" json:"lastReadAt,omitempty"`
}

// Conversation is a persistent two-party messaging thread. Conversations are
// created lazily on first contact and deactivated rather than deleted.
type Conversation struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PairKey       string             `bson:"pair_key" json:"-"`
	Participants  []Participant      `bson:"participants" json:"participants"`
	LastMessageID primitive.ObjectID `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	IsActive      bool               `bson:"is_active" json:"isActive"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID. The second
// return is false when userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID uint) (Participant, bool) {
	if !c.HasParticipant(userID) {
		return Participant{}, false
	}
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// UnreadFor returns the unread counter for userID, zero if absent.
func (c *Conversation) UnreadFor(userID uint) int {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.UnreadCount
		}
	}
	return 0
}

// Attachment is a file reference carried by a message.
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
	Size int64  `bson:"size" json:"size"`
}

// ReadReceipt records that a user has read a message. At most one entry per
// reader.
type ReadReceipt struct {
	UserID    uint      `bson:"user_id" json:"userId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Reaction is a user's emoji response to a message. A user holds at most one
// active reaction; a newer one replaces it.
type Reaction struct {
	UserID    uint      `bson:"user_id" json:"userId"`
	Type      string    `bson:"type" json:"type"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Message is a single unit of communication. Content is immutable after
// creation; only status, readBy and reactions change.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversationId"`
	SenderID       uint               `bson:"sender_id" json:"senderId"`
	SenderRole     string             `bson:"sender_role" json:"senderRole"`
	Content        string             `bson:"content" json:"content"`
	Type           string             `bson:"type" json:"type"`
	Attachments    []Attachment       `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Status         string             `bson:"status" json:"status"`
	ReadBy         []ReadReceipt      `bson:"read_by,omitempty" json:"readBy,omitempty"`
	Reactions      []Reaction         `bson:"reactions,omitempty" json:"reactions,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

// ReadByUser reports whether userID already has a read receipt on m.
func (m *Message) ReadByUser(userID uint) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// LatestReaction returns the type of the most recent reaction, empty when
// the message has none.
func (m *Message) LatestReaction() string {
	if len(m.Reactions) == 0 {
		return ""
	}
	latest := m.Reactions[0]
	for _, r := range m.Reactions[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return latest.Type
}
