// Package realtime implements the websocket layer: presence tracking,
// conversation rooms and the event protocol between server and clients.
package realtime

import (
	"encoding/json"
	"fmt"

	"telederm/internal/chat"
)

// EventKind is the closed set of inbound event types. Dispatch happens
// through a single switch so an unhandled kind is a compile-time smell, not
// a silent drop.
type EventKind int

const (
	EventJoin EventKind = iota
	EventLeave
	EventSend
	EventTyping
	EventRead
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventSend:
		return "send"
	case EventTyping:
		return "typing"
	case EventRead:
		return "read"
	}
	return "unknown"
}

// InboundEvent is a parsed client event. Only the fields relevant to Kind
// are populated.
type InboundEvent struct {
	Kind           EventKind
	ConversationID string
	Content        string
	MessageType    string
	Attachments    []chat.Attachment
	IsTyping       bool
	MessageID      string
}

type inboundEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inboundPayload struct {
	ConversationID string            `json:"conversationId"`
	Content        string            `json:"content"`
	Type           string            `json:"type"`
	Attachments    []chat.Attachment `json:"attachments"`
	IsTyping       bool              `json:"isTyping"`
	MessageID      string            `json:"messageId"`
}

// ParseInbound decodes a raw client frame into an InboundEvent. Unknown
// event types are an error; clients never get a partial dispatch.
func ParseInbound(data []byte) (*InboundEvent, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}

	var kind EventKind
	switch env.Type {
	case "join":
		kind = EventJoin
	case "leave":
		kind = EventLeave
	case "send":
		kind = EventSend
	case "typing":
		kind = EventTyping
	case "read":
		kind = EventRead
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	var p inboundPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
	}

	ev := &InboundEvent{Kind: kind}
	switch kind {
	case EventJoin, EventLeave:
		if p.ConversationID == "" {
			return nil, fmt.Errorf("%s requires conversationId", env.Type)
		}
		ev.ConversationID = p.ConversationID
	case EventSend:
		if p.ConversationID == "" {
			return nil, fmt.Errorf("send requires conversationId")
		}
		ev.ConversationID = p.ConversationID
		ev.Content = p.Content
		ev.MessageType = p.Type
		ev.Attachments = p.Attachments
	case EventTyping:
		if p.ConversationID == "" {
			return nil, fmt.Errorf("typing requires conversationId")
		}
		ev.ConversationID = p.ConversationID
		ev.IsTyping = p.IsTyping
	case EventRead:
		if p.MessageID == "" {
			return nil, fmt.Errorf("read requires messageId")
		}
		ev.MessageID = p.MessageID
	}
	return ev, nil
}

type outboundEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func encode(eventType string, payload interface{}) []byte {
	data, err := json.Marshal(outboundEnvelope{Type: eventType, Payload: payload})
	if err != nil {
		// Payloads are our own structs; a marshal failure is a programming error.
		return []byte(`{"type":"error","payload":{"reason":"internal"}}`)
	}
	return data
}

// ConnectedEvent acknowledges a successful handshake.
func ConnectedEvent(userID uint) []byte {
	return encode("connected", map[string]interface{}{"userId": userID})
}

// NewMessageEvent carries a freshly appended message.
func NewMessageEvent(msg chat.MessageView) []byte {
	return encode("message:new", msg)
}

// MessageStatusEvent announces a delivery-state change.
func MessageStatusEvent(messageID, status string) []byte {
	return encode("message:status", map[string]interface{}{
		"messageId": messageID,
		"status":    status,
	})
}

// TypingEvent relays a typing indicator to a conversation room.
func TypingEvent(conversationID string, userID uint, isTyping bool) []byte {
	return encode("message:typing", map[string]interface{}{
		"conversationId": conversationID,
		"userId":         userID,
		"isTyping":       isTyping,
	})
}

// UserStatusEvent announces an online or offline transition.
func UserStatusEvent(userID uint, status string) []byte {
	return encode("user:status", map[string]interface{}{
		"userId": userID,
		"status": status,
	})
}

// ErrorEvent carries a machine-readable failure reason to the client.
func ErrorEvent(reason, message string) []byte {
	return encode("error", map[string]interface{}{
		"reason":  reason,
		"message": message,
	})
}
