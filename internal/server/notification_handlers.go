package server

import (
	"telederm/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications lists the caller's unread notifications, newest first.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	notifs, err := s.notifSvc.ListUnread(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, notifs)
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	if err := s.notifSvc.MarkRead(c.UserContext(), c.Params("id"), userID); err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"read": true,
	})
}
