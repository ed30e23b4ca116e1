package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes realtime events into Redis channels so multiple server
// processes can share one logical hub. With a nil Redis client every publish
// is a no-op and delivery stays in-process.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier over the provided Redis client (may be nil).
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether cross-process fanout is available. Callers deliver
// through the local hub directly when it is not.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "chat:user:" + strconv.FormatUint(uint64(userID), 10)
}

// ConversationChannel derives the Redis channel name for a conversation room.
func ConversationChannel(conversationID string) string {
	return "chat:conv:" + conversationID
}

// PublishUser sends an event payload to every process holding connections
// for the user.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// convEnvelope wraps a conversation payload on the wire so subscribing
// processes know which users not to deliver to (normally the originator).
type convEnvelope struct {
	Exclude []uint          `json:"exclude,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// PublishConversation sends an event payload to a conversation room across
// processes. Users in exclude are skipped on delivery.
func (n *Notifier) PublishConversation(ctx context.Context, conversationID string, payload []byte, exclude ...uint) error {
	if n.rdb == nil {
		return nil
	}
	data, err := json.Marshal(convEnvelope{Exclude: exclude, Payload: payload})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, ConversationChannel(conversationID), data).Err()
}

// PublishBroadcast sends an event payload to all connected users everywhere.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, "chat:broadcast", payload).Err()
}

// StartSubscriber subscribes to the chat channel patterns and forwards each
// message into the hub until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, hub *Hub) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "chat:user:*", "chat:conv:*", "chat:broadcast")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in chat subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					dispatch(hub, msg.Channel, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

func dispatch(hub *Hub, channel string, payload []byte) {
	switch {
	case channel == "chat:broadcast":
		hub.BroadcastAll(payload)
	case strings.HasPrefix(channel, "chat:user:"):
		var userID uint
		if _, err := fmt.Sscanf(channel, "chat:user:%d", &userID); err != nil {
			log.Printf("invalid chat channel: %s", channel)
			return
		}
		hub.SendToUser(userID, payload)
	case strings.HasPrefix(channel, "chat:conv:"):
		roomID := strings.TrimPrefix(channel, "chat:conv:")
		var env convEnvelope
		if err := json.Unmarshal(payload, &env); err != nil || len(env.Payload) == 0 {
			log.Printf("invalid conversation payload on %s", channel)
			return
		}
		hub.EmitToRoom(roomID, env.Payload, env.Exclude...)
	default:
		log.Printf("invalid chat channel: %s", channel)
	}
}
