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

const messagesCollection = "messages"

// MongoMessageStore implements MessageStore on the document store.
type MongoMessageStore struct {
	coll   *mongo.Collection
	logger *observability.StoreLogger
}

// NewMongoMessageStore creates a message store over db.
func NewMongoMessageStore(db *mongo.Database) *MongoMessageStore {
	return &MongoMessageStore{
		coll:   db.Collection(messagesCollection),
		logger: observability.NewStoreLogger(messagesCollection),
	}
}

// Append inserts a new message with status "sent" and fills in its generated
// ID and creation time.
func (s *MongoMessageStore) Append(ctx context.Context, msg *Message) error {
	msg.ID = primitive.NilObjectID
	msg.Status = StatusSent
	msg.CreatedAt = time.Now()

	err := withRetry(ctx, func(ctx context.Context) error {
		res, err := s.coll.InsertOne(ctx, msg)
		if err != nil {
			return err
		}
		msg.ID = res.InsertedID.(primitive.ObjectID)
		return nil
	})
	if err != nil {
		s.logger.LogError(ctx, err, "append")
		return models.NewInternalError(err)
	}
	return nil
}

// ListByConversation returns one page of messages, newest first, plus the
// total message count for the conversation.
func (s *MongoMessageStore) ListByConversation(ctx context.Context, conversationID string, page, limit int) ([]Message, int64, error) {
	oid, err := parseObjectID(conversationID, "conversation")
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	filter := bson.M{"conversation_id": oid}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	var msgs []Message
	var total int64
	err = withRetry(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.coll.CountDocuments(ctx, filter)
		if err != nil {
			return err
		}
		cursor, err := s.coll.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		msgs = msgs[:0]
		return cursor.All(ctx, &msgs)
	})
	if err != nil {
		s.logger.LogError(ctx, err, "list_by_conversation")
		return nil, 0, models.NewInternalError(err)
	}
	return msgs, total, nil
}

// GetByID loads a single message.
func (s *MongoMessageStore) GetByID(ctx context.Context, messageID string) (*Message, error) {
	oid, err := parseObjectID(messageID, "message")
	if err != nil {
		return nil, err
	}

	var msg Message
	err = withRetry(ctx, func(ctx context.Context) error {
		return s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.NewNotFoundError("Message", messageID)
		}
		s.logger.LogError(ctx, err, "get")
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// GetByIDs batch-loads messages by ID. Missing IDs are simply absent from the
// result, mirroring how deleted accounts degrade in listings.
func (s *MongoMessageStore) GetByIDs(ctx context.Context, messageIDs []string) (map[string]*Message, error) {
	result := make(map[string]*Message, len(messageIDs))
	oids := make([]primitive.ObjectID, 0, len(messageIDs))
	for _, id := range messageIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return result, nil
	}

	var msgs []Message
	err := withRetry(ctx, func(ctx context.Context) error {
		cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
		if err != nil {
			return err
		}
		msgs = msgs[:0]
		return cursor.All(ctx, &msgs)
	})
	if err != nil {
		s.logger.LogError(ctx, err, "get_by_ids")
		return nil, models.NewInternalError(err)
	}

	for i := range msgs {
		result[msgs[i].ID.Hex()] = &msgs[i]
	}
	return result, nil
}

// SetStatus applies a forward status transition. For "read" it also appends
// the reader's receipt unless one already exists; a repeat call from the same
// reader matches nothing and is a no-op.
func (s *MongoMessageStore) SetStatus(ctx context.Context, messageID string, readerID uint, status string) error {
	oid, err := parseObjectID(messageID, "message")
	if err != nil {
		return err
	}

	var filter, update bson.M
	switch status {
	case StatusDelivered:
		filter = bson.M{"_id": oid, "status": StatusSent}
		update = bson.M{"$set": bson.M{"status": StatusDelivered}}
	case StatusRead:
		filter = bson.M{"_id": oid, "read_by.user_id": bson.M{"$ne": readerID}}
		update = bson.M{
			"$set":  bson.M{"status": StatusRead},
			"$push": bson.M{"read_by": ReadReceipt{UserID: readerID, Timestamp: time.Now()}},
		}
	default:
		return models.NewValidationError("invalid status: " + status)
	}

	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.coll.UpdateOne(ctx, filter, update)
		return err
	})
	if err != nil {
		s.logger.LogError(ctx, err, "set_status")
		return models.NewInternalError(err)
	}
	return nil
}

// BulkMarkRead marks every message in the conversation that was authored by
// someone else and not yet read by readerID. Returns the number of messages
// updated.
func (s *MongoMessageStore) BulkMarkRead(ctx context.Context, conversationID string, readerID uint) (int64, error) {
	oid, err := parseObjectID(conversationID, "conversation")
	if err != nil {
		return 0, err
	}

	filter := bson.M{
		"conversation_id": oid,
		"sender_id":       bson.M{"$ne": readerID},
		"read_by.user_id": bson.M{"$ne": readerID},
	}
	update := bson.M{
		"$set":  bson.M{"status": StatusRead},
		"$push": bson.M{"read_by": ReadReceipt{UserID: readerID, Timestamp: time.Now()}},
	}

	var modified int64
	err = withRetry(ctx, func(ctx context.Context) error {
		res, err := s.coll.UpdateMany(ctx, filter, update)
		if err != nil {
			return err
		}
		modified = res.ModifiedCount
		return nil
	})
	if err != nil {
		s.logger.LogError(ctx, err, "bulk_mark_read")
		return 0, models.NewInternalError(err)
	}
	return modified, nil
}

// SetReaction replaces the user's reaction on a message. Each update is
// conditional on whether the user already holds one, so concurrent calls from
// the same user can never leave two entries.
func (s *MongoMessageStore) SetReaction(ctx context.Context, messageID string, userID uint, reactionType string) error {
	oid, err := parseObjectID(messageID, "message")
	if err != nil {
		return err
	}

	err = withRetry(ctx, func(ctx context.Context) error {
		now := time.Now()

		// Update in place when the user already reacted.
		res, err := s.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.user_id": userID},
			bson.M{"$set": bson.M{
				"reactions.$.type":      reactionType,
				"reactions.$.timestamp": now,
			}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// No existing reaction: the $ne guard keeps a concurrent insert from
		// producing a second entry.
		res, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.user_id": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"reactions": Reaction{UserID: userID, Type: reactionType, Timestamp: now}}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// Lost the insert race; the entry now exists, update it.
		res, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.user_id": userID},
			bson.M{"$set": bson.M{
				"reactions.$.type":      reactionType,
				"reactions.$.timestamp": now,
			}},
		)
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
			return models.NewNotFoundError("Message", messageID)
		}
		s.logger.LogError(ctx, err, "set_reaction")
		return models.NewInternalError(err)
	}
	return nil
}

// Remove deletes a message document. Used only to compensate when the
// conversation update after an append fails, never as a user-facing delete.
func (s *MongoMessageStore) Remove(ctx context.Context, messageID string) error {
	oid, err := parseObjectID(messageID, "message")
	if err != nil {
		return err
	}
	err = withRetry(ctx, func(ctx context.Context) error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		s.logger.LogError(ctx, err, "remove")
		return models.NewInternalError(err)
	}
	return nil
}
