package server

import (
	"telederm/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the caller's directory profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	profile, err := s.dir.Lookup(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, profile)
}
