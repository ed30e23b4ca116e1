// Package notifications delivers alerts to users, preferring live websocket
// delivery and falling back to durable storage for offline recipients.
package notifications

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

// Notification kinds produced by the platform.
const (
	TypeDoctorMessage     = "doctor_message"
	TypeDiagnosisReady    = "diagnosis_ready"
	TypeAppointmentUpdate = "appointment_update"
)

// Notification is an alert for a single user. Persisted only when the user
// had no live connection at send time.
type Notification struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID    uint                   `bson:"user_id" json:"userId"`
	Type      string                 `bson:"type" json:"type"`
	Title     string                 `bson:"title" json:"title"`
	Message   string                 `bson:"message" json:"message"`
	Data      map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool                   `bson:"read" json:"read"`
	CreatedAt time.Time              `bson:"created_at" json:"createdAt"`
}

// Store persists deferred notifications.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	ListUnread(ctx context.Context, userID uint) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID string, userID uint) error
}

const notificationsCollection = "notifications"

// MongoStore implements Store on the document store.
type MongoStore struct {
	coll   *mongo.Collection
	logger *observability.StoreLogger
}

// NewMongoStore creates a notification store over db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll:   db.Collection(notificationsCollection),
		logger: observability.NewStoreLogger(notificationsCollection),
	}
}

// Insert writes a deferred notification.
func (s *MongoStore) Insert(ctx context.Context, n *Notification) error {
	n.ID = primitive.NilObjectID
	n.Read = false
	n.CreatedAt = time.Now()

	res, err := s.coll.InsertOne(ctx, n)
	if err != nil {
		s.logger.LogError(ctx, err, "insert")
		return models.NewInternalError(err)
	}
	n.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// ListUnread returns the user's unread notifications, newest first.
func (s *MongoStore) ListUnread(ctx context.Context, userID uint) ([]Notification, error) {
	filter := bson.M{"user_id": userID, "read": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		s.logger.LogError(ctx, err, "list_unread")
		return nil, models.NewInternalError(err)
	}
	var out []Notification
	if err := cursor.All(ctx, &out); err != nil {
		s.logger.LogError(ctx, err, "list_unread")
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

// MarkRead acknowledges a notification. The owner filter doubles as the
// authorization check.
func (s *MongoStore) MarkRead(ctx context.Context, notificationID string, userID uint) error {
	oid, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return models.NewValidationError("invalid notification ID")
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.NewNotFoundError("Notification", notificationID)
		}
		s.logger.LogError(ctx, err, "mark_read")
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Notification", notificationID)
	}
	return nil
}
