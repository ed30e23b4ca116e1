package server

import (
	"fmt"
	"strconv"
	"time"

	"telederm/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Tickets outlive a page navigation but not much more.
const wsTicketTTL = 30 * time.Second

// IssueWSTicket mints a short-lived single-use ticket the browser can put in
// the websocket URL, since upgrade requests cannot carry an Authorization
// header.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID, err := s.requireUserID(c)
	if err != nil {
		return nil
	}

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("ticket store unavailable")))
	}

	ticket := uuid.NewString()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.UserContext(), key, strconv.FormatUint(uint64(userID), 10), wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"ticket": ticket,
	})
}
