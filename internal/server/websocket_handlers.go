package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telederm/internal/chat"
	"telederm/internal/middleware"
	"telederm/internal/models"
	"telederm/internal/observability"
	"telederm/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketChatHandler upgrades the connection and runs the chat session for
// one client. Auth middleware has already resolved the userID into locals.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	wsLogger := observability.NewWSLogger("chat")

	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage,
				realtime.ErrorEvent("connection_limit", err.Error()))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "connection limit reached"))
			_ = conn.Close()
			return
		}

		observability.ActiveWebSockets.Inc()
		defer observability.ActiveWebSockets.Dec()

		ctx := context.Background()
		wsLogger.LogConnect(ctx, userID)
		defer wsLogger.LogDisconnect(ctx, userID, "connection closed")

		client.IncomingHandler = func(cl *realtime.Client, data []byte) {
			s.handleChatEvent(ctx, wsLogger, cl, data)
		}

		client.TrySend(realtime.ConnectedEvent(userID))

		go client.WritePump()
		client.ReadPump()
	})
}

// handleChatEvent parses one inbound frame and dispatches it. Every failure
// goes back to the client as an error event; the connection stays up.
func (s *Server) handleChatEvent(ctx context.Context, wsLogger *observability.WSLogger, cl *realtime.Client, data []byte) {
	ev, err := realtime.ParseInbound(data)
	if err != nil {
		wsLogger.LogError(ctx, cl.UserID, err, "parse")
		cl.TrySend(realtime.ErrorEvent("invalid_event", err.Error()))
		return
	}

	kind := ev.Kind.String()
	observability.WebSocketEventsTotal.WithLabelValues(kind).Inc()
	wsLogger.LogEvent(ctx, cl.UserID, kind)

	switch ev.Kind {
	case realtime.EventJoin:
		s.handleJoin(ctx, cl, ev)
	case realtime.EventLeave:
		s.hub.LeaveRoom(cl.UserID, ev.ConversationID)
	case realtime.EventSend:
		s.handleWSMessage(ctx, wsLogger, cl, ev)
	case realtime.EventTyping:
		s.handleTyping(ctx, wsLogger, cl, ev)
	case realtime.EventRead:
		s.handleWSRead(ctx, wsLogger, cl, ev)
	}
}

func (s *Server) handleJoin(ctx context.Context, cl *realtime.Client, ev *realtime.InboundEvent) {
	// Only participants may subscribe to a conversation room.
	if _, err := s.chatService.ConversationFor(ctx, ev.ConversationID, cl.UserID); err != nil {
		cl.TrySend(wsErrorFor(err))
		return
	}
	s.hub.JoinRoom(cl.UserID, ev.ConversationID)
}

func (s *Server) handleWSMessage(ctx context.Context, wsLogger *observability.WSLogger, cl *realtime.Client, ev *realtime.InboundEvent) {
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, "send_chat",
		fmt.Sprintf("user:%d", cl.UserID), 15, time.Minute)
	if err == nil && !allowed {
		cl.TrySend(realtime.ErrorEvent("rate_limited", "You are sending messages too quickly"))
		return
	}

	res, err := s.chatService.Send(ctx, ev.ConversationID, cl.UserID, ev.Content, ev.MessageType, ev.Attachments)
	if err != nil {
		wsLogger.LogError(ctx, cl.UserID, err, "send")
		cl.TrySend(wsErrorFor(err))
		return
	}

	s.fanOutMessage(ctx, res)
	// Echo to the sender's own devices so every tab shows the message.
	s.emitToUser(ctx, cl.UserID, realtime.NewMessageEvent(res.Message))
}

func (s *Server) handleTyping(ctx context.Context, wsLogger *observability.WSLogger, cl *realtime.Client, ev *realtime.InboundEvent) {
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, "typing",
		fmt.Sprintf("user:%d", cl.UserID), 10, 10*time.Second)
	if err == nil && !allowed {
		return
	}

	if !s.hub.InRoom(cl.UserID, ev.ConversationID) {
		if _, err := s.chatService.ConversationFor(ctx, ev.ConversationID, cl.UserID); err != nil {
			wsLogger.LogError(ctx, cl.UserID, err, "typing")
			cl.TrySend(wsErrorFor(err))
			return
		}
	}

	data := realtime.TypingEvent(ev.ConversationID, cl.UserID, ev.IsTyping)
	if s.notifier.Enabled() {
		if err := s.notifier.PublishConversation(ctx, ev.ConversationID, data, cl.UserID); err == nil {
			return
		}
	}
	s.hub.EmitToRoom(ev.ConversationID, data, cl.UserID)
}

func (s *Server) handleWSRead(ctx context.Context, wsLogger *observability.WSLogger, cl *realtime.Client, ev *realtime.InboundEvent) {
	result, err := s.chatService.UpdateStatus(ctx, ev.MessageID, cl.UserID, chat.StatusRead)
	if err != nil {
		wsLogger.LogError(ctx, cl.UserID, err, "read")
		cl.TrySend(wsErrorFor(err))
		return
	}
	s.emitToUser(ctx, result.SenderID, realtime.MessageStatusEvent(ev.MessageID, result.Status))
}

// wsErrorFor translates a service error into a client-facing error event,
// hiding internal details for unexpected failures.
func wsErrorFor(err error) []byte {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
		return realtime.ErrorEvent(appErr.Code, appErr.Message)
	}
	return realtime.ErrorEvent(models.CodeInternal, "Something went wrong")
}
