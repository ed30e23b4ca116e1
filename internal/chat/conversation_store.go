package chat

import (
	"context"
	"errors"
	"time"

	"telederm/internal/models"
	"telederm/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const conversationsCollection = "conversations"

// MongoConversationStore implements ConversationStore on the document store.
type MongoConversationStore struct {
	coll   *mongo.Collection
	logger *observability.StoreLogger
}

// NewMongoConversationStore creates a conversation store over db.
func NewMongoConversationStore(db *mongo.Database) *MongoConversationStore {
	return &MongoConversationStore{
		coll:   db.Collection(conversationsCollection),
		logger: observability.NewStoreLogger(conversationsCollection),
	}
}

func parseObjectID(id, resource string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.NewValidationError("invalid " + resource + " ID")
	}
	return oid, nil
}

// FindOrCreate returns the conversation for the unordered pair (userA, userB),
// creating it when absent. The upsert is keyed on pair_key, so two concurrent
// calls from either side resolve to the same document.
func (s *MongoConversationStore) FindOrCreate(ctx context.Context, userA, userB uint) (*Conversation, error) {
	if userA == userB {
		return nil, models.NewValidationError("cannot start a conversation with yourself")
	}

	now := time.Now()
	filter := bson.M{"pair_key": PairKey(userA, userB)}
	update := bson.M{
		"$setOnInsert": bson.M{
			"pair_key": PairKey(userA, userB),
			"participants": []Participant{
				{UserID: userA, UnreadCount: 0},
				{UserID: userB, UnreadCount: 0},
			},
			"is_active":  true,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conv Conversation
	err := withRetry(ctx, func(ctx context.Context) error {
		return s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	})
	if err != nil {
		s.logger.LogError(ctx, err, "find_or_create")
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// ListForUser returns the user's active conversations, most recently
// updated first.
func (s *MongoConversationStore) ListForUser(ctx context.Context, userID uint) ([]Conversation, error) {
	filter := bson.M{
		"participants.user_id": userID,
		"is_active":            true,
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var convs []Conversation
	err := withRetry(ctx, func(ctx context.Context) error {
		cursor, err := s.coll.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		convs = convs[:0]
		return cursor.All(ctx, &convs)
	})
	if err != nil {
		s.logger.LogError(ctx, err, "list_for_user")
		return nil, models.NewInternalError(err)
	}
	return convs, nil
}

// GetIfParticipant loads a conversation and verifies userID belongs to it.
// This is the authorization gate in front of every message operation.
func (s *MongoConversationStore) GetIfParticipant(ctx context.Context, conversationID string, userID uint) (*Conversation, error) {
	oid, err := parseObjectID(conversationID, "conversation")
	if err != nil {
		return nil, err
	}

	var conv Conversation
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Conversation", conversationID)
		}
		s.logger.LogError(ctx, err, "get")
		return nil, models.NewInternalError(err)
	}

	if !conv.HasParticipant(userID) {
		return nil, models.NewForbiddenError("you are not a participant of this conversation")
	}
	return &conv, nil
}

// RecordNewMessage points the conversation at its newest message, bumps
// updated_at and increments the unread counter of every participant other
// than the sender. All of it is one atomic update so concurrent sends never
// lose an increment.
func (s *MongoConversationStore) RecordNewMessage(ctx context.Context, conversationID, messageID string, senderID uint) error {
	convOID, err := parseObjectID(conversationID, "conversation")
	if err != nil {
		return err
	}
	msgOID, err := parseObjectID(messageID, "message")
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"last_message_id": msgOID,
			"updated_at":      time.Now(),
		},
		"$inc": bson.M{
			"participants.$[other].unread_count": 1,
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"other.user_id": bson.M{"$ne": senderID}}},
	})

	err = withRetry(ctx, func(ctx context.Context) error {
		res, err := s.coll.UpdateOne(ctx, bson.M{"_id": convOID}, update, opts)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return mongo.ErrNoDocuments
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NewNotFoundError("Conversation", conversationID)
		}
		s.logger.LogError(ctx, err, "record_new_message")
		return models.NewInternalError(err)
	}
	return nil
}

// ResetUnread zeroes the calling participant's unread counter and stamps
// their last read time.
func (s *MongoConversationStore) ResetUnread(ctx context.Context, conversationID string, userID uint) error {
	oid, err := parseObjectID(conversationID, "conversation")
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"participants.$[me].unread_count": 0,
			"participants.$[me].last_read_at": time.Now(),
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"me.user_id": userID}},
	})

	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update, opts)
		return err
	})
	if err != nil {
		s.logger.LogError(ctx, err, "reset_unread")
		return models.NewInternalError(err)
	}
	return nil
}
