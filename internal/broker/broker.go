package broker

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Channel kinds double as topic name prefixes and metric labels.
const (
	KindNotifications = "notifications"
	KindChat          = "chat"
)

// Subscriber is one live session's receiving end. Enqueue must never block;
// it reports whether the payload was accepted so the broker can count drops
// without stalling delivery to other subscribers.
type Subscriber interface {
	Enqueue(payload []byte) bool
}

// Broker routes published payloads to every subscriber of a topic. There is
// no replay: subscribers added after a publish do not see it. Within one
// topic a single publisher's payloads are delivered in publish order.
type Broker interface {
	Subscribe(topic string, sub Subscriber) error
	Unsubscribe(topic string, sub Subscriber) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// NotificationsTopic names the per-user notification channel.
func NotificationsTopic(userID uuid.UUID) string {
	return KindNotifications + ":" + userID.String()
}

// ChatTopic names the per-user chat channel.
func ChatTopic(userID uuid.UUID) string {
	return KindChat + ":" + userID.String()
}

// TopicKind extracts the channel kind prefix from a topic name.
func TopicKind(topic string) string {
	if idx := strings.IndexByte(topic, ':'); idx > 0 {
		return topic[:idx]
	}
	return topic
}
