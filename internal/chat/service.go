package chat

import (
	"context"
	"strings"
	"time"

	"telederm/internal/directory"
	"telederm/internal/models"
	"telederm/internal/observability"
)

const maxContentLength = 4000

// MessageView is the enriched message shape returned to clients.
type MessageView struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content"`
	SenderID       uint         `json:"senderId"`
	SenderName     string       `json:"senderName"`
	SenderImage    string       `json:"senderImage,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Status         string       `json:"status"`
	Type           string       `json:"type"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Reaction       string       `json:"reaction,omitempty"`
}

// ConversationView is the enriched conversation shape returned to clients.
// Participant fields describe the other side of the thread.
type ConversationView struct {
	ID               string       `json:"id"`
	ParticipantID    uint         `json:"participantId"`
	ParticipantName  string       `json:"participantName"`
	ParticipantRole  string       `json:"participantRole"`
	ParticipantImage string       `json:"participantImage,omitempty"`
	UnreadCount      int          `json:"unreadCount"`
	LastMessage      *MessageView `json:"lastMessage"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// MessagePage is one page of conversation history.
type MessagePage struct {
	Messages []MessageView `json:"messages"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
	Total    int64         `json:"total"`
}

// Service coordinates the conversation and message stores with the user
// directory. All participant and sender checks happen here so REST and
// websocket paths enforce identical rules.
type Service struct {
	convs  ConversationStore
	msgs   MessageStore
	dir    directory.Directory
	logger *observability.Logger
}

// NewService wires a chat service from its stores and the directory adapter.
func NewService(convs ConversationStore, msgs MessageStore, dir directory.Directory) *Service {
	return &Service{
		convs:  convs,
		msgs:   msgs,
		dir:    dir,
		logger: observability.GlobalLogger,
	}
}

func viewOf(m *Message, sender *directory.Profile) MessageView {
	v := MessageView{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID.Hex(),
		Content:        m.Content,
		SenderID:       m.SenderID,
		Timestamp:      m.CreatedAt,
		Status:         m.Status,
		Type:           m.Type,
		Attachments:    m.Attachments,
		Reaction:       m.LatestReaction(),
	}
	if sender != nil {
		v.SenderName = sender.DisplayName
		v.SenderImage = sender.AvatarURL
	} else {
		v.SenderName = "Unknown User"
	}
	return v
}

// StartConversation finds or creates the conversation between userID and
// otherID. The other account must exist; starting a thread with yourself is
// rejected.
func (s *Service) StartConversation(ctx context.Context, userID, otherID uint) (*Conversation, error) {
	if userID == otherID {
		return nil, models.NewValidationError("cannot start a conversation with yourself")
	}
	if _, err := s.dir.Lookup(ctx, otherID); err != nil {
		return nil, err
	}
	return s.convs.FindOrCreate(ctx, userID, otherID)
}

// ListConversations returns the user's threads newest-activity-first, each
// enriched with the other participant's profile and last message summary.
func (s *Service) ListConversations(ctx context.Context, userID uint) ([]ConversationView, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]uint, 0, len(convs))
	lastIDs := make([]string, 0, len(convs))
	for i := range convs {
		if other, ok := convs[i].OtherParticipant(userID); ok {
			otherIDs = append(otherIDs, other.UserID)
		}
		if !convs[i].LastMessageID.IsZero() {
			lastIDs = append(lastIDs, convs[i].LastMessageID.Hex())
		}
	}

	profiles, err := s.dir.LookupMany(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	lastMessages, err := s.msgs.GetByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		other, ok := convs[i].OtherParticipant(userID)
		if !ok {
			continue
		}
		profile := profiles[other.UserID]
		view := ConversationView{
			ID:          convs[i].ID.Hex(),
			UnreadCount: convs[i].UnreadFor(userID),
			UpdatedAt:   convs[i].UpdatedAt,
		}
		if profile != nil {
			view.ParticipantID = profile.ID
			view.ParticipantName = profile.DisplayName
			view.ParticipantRole = profile.Role
			view.ParticipantImage = profile.AvatarURL
		}
		if last, ok := lastMessages[convs[i].LastMessageID.Hex()]; ok {
			lv := viewOf(last, profiles[last.SenderID])
			view.LastMessage = &lv
		}
		views = append(views, view)
	}
	return views, nil
}

// ListMessages returns one page of history for a conversation the caller
// participates in. Fetching has the read side effect: everything the other
// side sent is marked read and the caller's unread counter drops to zero.
func (s *Service) ListMessages(ctx context.Context, conversationID string, userID uint, page, limit int) (*MessagePage, error) {
	if _, err := s.convs.GetIfParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	if _, err := s.msgs.BulkMarkRead(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if err := s.convs.ResetUnread(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msgs, total, err := s.msgs.ListByConversation(ctx, conversationID, page, limit)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uint, 0, len(msgs))
	seen := make(map[uint]struct{}, 2)
	for i := range msgs {
		if _, ok := seen[msgs[i].SenderID]; !ok {
			seen[msgs[i].SenderID] = struct{}{}
			senderIDs = append(senderIDs, msgs[i].SenderID)
		}
	}
	profiles, err := s.dir.LookupMany(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, viewOf(&msgs[i], profiles[msgs[i].SenderID]))
	}
	return &MessagePage{Messages: views, Page: page, Limit: limit, Total: total}, nil
}

// SendResult carries a sent message plus the recipients the caller should
// fan it out to.
type SendResult struct {
	Message    MessageView
	Recipients []uint
}

// Send validates, appends and records a new message. If the conversation
// update fails after the append, the orphaned message is removed so no
// message exists without its unread increment.
func (s *Service) Send(ctx context.Context, conversationID string, senderID uint, content, msgType string, attachments []Attachment) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if msgType == "" {
		msgType = MessageTypeText
	}
	if !ValidMessageType(msgType) {
		return nil, models.NewValidationError("invalid message type: " + msgType)
	}
	if content == "" && len(attachments) == 0 {
		return nil, models.NewValidationError("message content is required")
	}
	if len(content) > maxContentLength {
		return nil, models.NewValidationError("message content is too long")
	}

	conv, err := s.convs.GetIfParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	sender, err := s.dir.Lookup(ctx, senderID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		SenderRole:     sender.Role,
		Content:        content,
		Type:           msgType,
		Attachments:    attachments,
	}
	if err := s.msgs.Append(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.convs.RecordNewMessage(ctx, conversationID, msg.ID.Hex(), senderID); err != nil {
		if rmErr := s.msgs.Remove(ctx, msg.ID.Hex()); rmErr != nil {
			s.logger.Error("failed to remove orphaned message",
				"message_id", msg.ID.Hex(), "error", rmErr)
		}
		return nil, err
	}

	recipients := make([]uint, 0, 1)
	for _, p := range conv.Participants {
		if p.UserID != senderID {
			recipients = append(recipients, p.UserID)
		}
	}

	return &SendResult{Message: viewOf(msg, sender), Recipients: recipients}, nil
}

// StatusResult reports the outcome of a status update, including who sent
// the original message so callers can notify them.
type StatusResult struct {
	Status         string
	SenderID       uint
	ConversationID string
}

// UpdateStatus moves a message forward through sent, delivered, read on
// behalf of readerID. Senders cannot act on their own messages. A target at
// or behind the current state is an idempotent no-op; the current status is
// returned either way.
func (s *Service) UpdateStatus(ctx context.Context, messageID string, readerID uint, target string) (*StatusResult, error) {
	if !ValidStatus(target) || target == StatusSent {
		return nil, models.NewValidationError("invalid status: " + target)
	}

	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID == readerID {
		return nil, models.NewForbiddenError("cannot update status of your own message")
	}
	if _, err := s.convs.GetIfParticipant(ctx, msg.ConversationID.Hex(), readerID); err != nil {
		return nil, err
	}

	result := &StatusResult{
		Status:         msg.Status,
		SenderID:       msg.SenderID,
		ConversationID: msg.ConversationID.Hex(),
	}
	if !StatusAdvances(msg.Status, target) {
		return result, nil
	}
	if err := s.msgs.SetStatus(ctx, messageID, readerID, target); err != nil {
		return nil, err
	}
	result.Status = target
	return result, nil
}

// React records readerID's reaction to a message, replacing any earlier one
// from the same user. Senders cannot react to their own messages.
func (s *Service) React(ctx context.Context, messageID string, userID uint, reactionType string) error {
	reactionType = strings.TrimSpace(reactionType)
	if reactionType == "" {
		return models.NewValidationError("reaction is required")
	}

	msg, err := s.msgs.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return models.NewForbiddenError("cannot react to your own message")
	}
	if _, err := s.convs.GetIfParticipant(ctx, msg.ConversationID.Hex(), userID); err != nil {
		return err
	}

	return s.msgs.SetReaction(ctx, messageID, userID, reactionType)
}

// ConversationFor is the participant gate used by the realtime gateway when
// a client joins a room.
func (s *Service) ConversationFor(ctx context.Context, conversationID string, userID uint) (*Conversation, error) {
	return s.convs.GetIfParticipant(ctx, conversationID, userID)
}
