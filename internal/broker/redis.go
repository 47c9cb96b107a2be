package broker

import (
	"context"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sara-platform/sara-hub/pkg/logger"
)

const channelPrefix = "sara:hub:"

// Redis layers Redis PUBLISH/SUBSCRIBE over the local registry so sessions
// on different processes share topics. Each locally-active topic holds one
// Redis subscription; published payloads loop back through it, which keeps
// local and remote subscribers on the same delivery path.
type Redis struct {
	local *Memory
	rdb   *goredis.Client
	logg  *logger.Logger

	mu    sync.Mutex
	pumps map[string]*topicPump
}

type topicPump struct {
	pubsub *goredis.PubSub
	cancel context.CancelFunc
}

// NewRedis builds a Redis-backed broker on top of a local registry.
func NewRedis(local *Memory, rdb *goredis.Client, logg *logger.Logger) *Redis {
	return &Redis{
		local: local,
		rdb:   rdb,
		logg:  logg,
		pumps: map[string]*topicPump{},
	}
}

// Subscribe registers the session locally and ensures the topic has a Redis
// subscription. Membership changes and pump lifecycle share one critical
// section so a pump is alive exactly while the topic has local members.
func (r *Redis) Subscribe(topic string, sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.local.Subscribe(topic, sub); err != nil {
		return err
	}
	if _, ok := r.pumps[topic]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.rdb.Subscribe(ctx, channelPrefix+topic)
	r.pumps[topic] = &topicPump{pubsub: pubsub, cancel: cancel}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				r.local.deliver(topic, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (r *Redis) Unsubscribe(topic string, sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.local.Unsubscribe(topic, sub); err != nil {
		return err
	}
	if r.local.subscriberCount(topic) > 0 {
		return nil
	}

	pump, ok := r.pumps[topic]
	if !ok {
		return nil
	}
	delete(r.pumps, topic)
	pump.cancel()
	if err := pump.pubsub.Close(); err != nil && r.logg != nil {
		r.logg.Error(context.Background(), "closing redis topic subscription", err)
	}
	return nil
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	r.local.hub.IncPublished(TopicKind(topic))
	return r.rdb.Publish(ctx, channelPrefix+topic, payload).Err()
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic, pump := range r.pumps {
		pump.cancel()
		_ = pump.pubsub.Close()
		delete(r.pumps, topic)
	}
	return r.local.Close()
}
