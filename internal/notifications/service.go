package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"telederm/internal/observability"
)

// Presence is the slice of the websocket hub the fallback service needs:
// queue a payload on a user's live connections, or report that there are
// none.
type Presence interface {
	SendToUser(userID uint, data []byte) bool
}

// Service delivers notifications. Online users get them over their live
// connections; offline users get a durable record to pick up on next login.
type Service struct {
	presence Presence
	store    Store
	logger   *observability.Logger
}

// NewService wires a notification service.
func NewService(presence Presence, store Store) *Service {
	return &Service{
		presence: presence,
		store:    store,
		logger:   observability.GlobalLogger,
	}
}

type wireNotification struct {
	Type    string        `json:"type"`
	Payload *Notification `json:"payload"`
}

// SendToUser attempts direct delivery and falls back to persistence when the
// user has no live connection. Persistence failures are logged and swallowed;
// notifications are best effort and never fail the operation that raised
// them.
func (s *Service) SendToUser(ctx context.Context, userID uint, n *Notification) {
	n.UserID = userID

	data, err := json.Marshal(wireNotification{Type: "notification", Payload: n})
	if err != nil {
		s.logger.Error("failed to marshal notification", "user_id", userID, "error", err)
		return
	}

	if s.presence != nil && s.presence.SendToUser(userID, data) {
		return
	}
	s.Persist(ctx, userID, n)
}

// Persist writes the notification for later retrieval. Best effort.
func (s *Service) Persist(ctx context.Context, userID uint, n *Notification) {
	n.UserID = userID
	if err := s.store.Insert(ctx, n); err != nil {
		s.logger.Error("failed to persist notification",
			"user_id", userID, "type", n.Type, "error", err)
		return
	}
	observability.NotificationsDeferredTotal.Inc()
}

// ListUnread returns the user's pending notifications.
func (s *Service) ListUnread(ctx context.Context, userID uint) ([]Notification, error) {
	return s.store.ListUnread(ctx, userID)
}

// MarkRead acknowledges a notification on behalf of its owner.
func (s *Service) MarkRead(ctx context.Context, notificationID string, userID uint) error {
	return s.store.MarkRead(ctx, notificationID, userID)
}

// NewDoctorMessage builds the alert for an unread chat message.
func NewDoctorMessage(senderName, conversationID, preview string) *Notification {
	if len(preview) > 120 {
		preview = preview[:117] + "..."
	}
	return &Notification{
		Type:    TypeDoctorMessage,
		Title:   fmt.Sprintf("New message from %s", senderName),
		Message: preview,
		Data: map[string]interface{}{
			"conversationId": conversationID,
		},
	}
}

// NewDiagnosisReady builds the alert for a completed image analysis.
func NewDiagnosisReady(diagnosisID string) *Notification {
	return &Notification{
		Type:    TypeDiagnosisReady,
		Title:   "Diagnosis results ready",
		Message: "Your skin analysis results are available",
		Data: map[string]interface{}{
			"diagnosisId": diagnosisID,
		},
	}
}

// NewAppointmentUpdate builds the alert for an appointment change.
func NewAppointmentUpdate(appointmentID, status string) *Notification {
	return &Notification{
		Type:    TypeAppointmentUpdate,
		Title:   "Appointment update",
		Message: fmt.Sprintf("Your appointment is now %s", status),
		Data: map[string]interface{}{
			"appointmentId": appointmentID,
			"status":        status,
		},
	}
}
