package server

import (
	"context"
	"log"

	"telederm/internal/chat"
	"telederm/internal/models"
	"telederm/internal/notifications"
	"telederm/internal/observability"
	"telederm/internal/realtime"

	"github.com/gofiber/fiber/v2"
)

// CreateConversation finds or creates the thread between the caller and the
// given participant.
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	var req struct {
		ParticipantID uint `json:"participantId"`
	}
	if err := c.BodyParser(&req); err != nil || req.ParticipantID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("participantId is required"))
	}

	conv, err := s.chatService.StartConversation(c.UserContext(), userID, req.ParticipantID)
	if err != nil {
		return respondError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusCreated, fiber.Map{
		"id": conv.ID.Hex(),
	})
}

// GetConversations lists the caller's conversations, newest activity first.
func (s *Server) GetConversations(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	views, err := s.chatService.ListConversations(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, views)
}

// GetMessages returns one page of a conversation's history. Fetching marks
// the other side's messages read and zeroes the caller's unread counter.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}
	conversationID := c.Params("id")
	p := parsePagination(c, 50)

	page, err := s.chatService.ListMessages(c.UserContext(), conversationID, userID, p.Page, p.Limit)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, page)
}

// SendMessage appends a message over REST and fans it out the same way the
// websocket path does.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}
	conversationID := c.Params("id")

	var req struct {
		Content     string            `json:"content"`
		Type        string            `json:"type"`
		Attachments []chat.Attachment `json:"attachments"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("invalid request body"))
	}

	res, err := s.chatService.Send(c.UserContext(), conversationID, userID, req.Content, req.Type, req.Attachments)
	if err != nil {
		return respondError(c, err)
	}

	s.fanOutMessage(c.UserContext(), res)

	return models.RespondWithData(c, fiber.StatusCreated, res.Message)
}

// UpdateMessageStatus moves a message to delivered or read on behalf of the
// caller.
func (s *Server) UpdateMessageStatus(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}
	messageID := c.Params("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("status is required"))
	}

	result, err := s.chatService.UpdateStatus(c.UserContext(), messageID, userID, req.Status)
	if err != nil {
		return respondError(c, err)
	}

	// Let the sender's devices update their ticks.
	s.emitToUser(c.UserContext(), result.SenderID, realtime.MessageStatusEvent(messageID, result.Status))

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"status": result.Status,
	})
}

// ReactToMessage records the caller's reaction to a message.
func (s *Server) ReactToMessage(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}
	messageID := c.Params("id")

	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := c.BodyParser(&req); err != nil || req.Reaction == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("reaction is required"))
	}

	if err := s.chatService.React(c.UserContext(), messageID, userID, req.Reaction); err != nil {
		return respondError(c, err)
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"reaction": req.Reaction,
	})
}

// fanOutMessage delivers a new message to every other participant. Online
// recipients get it on all their connections; offline ones get a persisted
// notification instead of a silent drop.
func (s *Server) fanOutMessage(ctx context.Context, res *chat.SendResult) {
	data := realtime.NewMessageEvent(res.Message)

	for _, recipient := range res.Recipients {
		// IsOnline only sees this process's connections. Running multiple
		// nodes needs a shared presence registry (redis keyed by userID)
		// before this check can rule out a live session elsewhere; until
		// then a recipient on another node also gets the fallback.
		if s.hub.IsOnline(recipient) {
			s.emitToUser(ctx, recipient, data)
			observability.MessagesSentTotal.WithLabelValues("websocket").Inc()
			continue
		}

		preview := res.Message.Content
		if preview == "" && len(res.Message.Attachments) > 0 {
			preview = "Sent an attachment"
		}
		s.notifSvc.SendToUser(ctx, recipient,
			notifications.NewDoctorMessage(res.Message.SenderName, res.Message.ConversationID, preview))
		observability.MessagesSentTotal.WithLabelValues("fallback").Inc()
	}
}

// emitToUser routes an event to all of a user's connections, through Redis
// when fanout spans processes, directly through the hub otherwise.
func (s *Server) emitToUser(ctx context.Context, userID uint, data []byte) {
	if s.notifier.Enabled() {
		if err := s.notifier.PublishUser(ctx, userID, data); err != nil {
			log.Printf("publish to user %d failed, delivering locally: %v", userID, err)
			s.hub.SendToUser(userID, data)
		}
		return
	}
	s.hub.SendToUser(userID, data)
}
