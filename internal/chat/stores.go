package chat

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationStore owns conversation documents.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, userA, userB uint) (*Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]Conversation, error)
	GetIfParticipant(ctx context.Context, conversationID string, userID uint) (*Conversation, error)
	RecordNewMessage(ctx context.Context, conversationID, messageID string, senderID uint) error
	ResetUnread(ctx context.Context, conversationID string, userID uint) error
}

// MessageStore owns message documents.
type MessageStore interface {
	Append(ctx context.Context, msg *Message) error
	ListByConversation(ctx context.Context, conversationID string, page, limit int) ([]Message, int64, error)
	GetByID(ctx context.Context, messageID string) (*Message, error)
	GetByIDs(ctx context.Context, messageIDs []string) (map[string]*Message, error)
	SetStatus(ctx context.Context, messageID string, readerID uint, status string) error
	BulkMarkRead(ctx context.Context, conversationID string, readerID uint) (int64, error)
	SetReaction(ctx context.Context, messageID string, userID uint, reactionType string) error
	Remove(ctx context.Context, messageID string) error
}

// isTransient reports whether a datastore error is worth one retry.
func isTransient(err error) bool {
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

// withRetry runs op and retries it once on a transient datastore error.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if err == nil || !isTransient(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(100 * time.Millisecond):
	}
	return op(ctx)
}

// EnsureIndexes creates the indexes the messaging core depends on. The unique
// pair_key index is what makes concurrent FindOrCreate converge on a single
// conversation per participant pair.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(conversationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participants.user_id", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(messagesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}
