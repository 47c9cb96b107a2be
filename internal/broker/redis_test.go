package broker

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Nothing listens on the address; pump goroutines retry in the background
// while the tests exercise registry bookkeeping only.
func newRedisBroker(t *testing.T) *Redis {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	b := NewRedis(NewMemory(nil), rdb, nil)
	t.Cleanup(func() {
		_ = b.Close()
		_ = rdb.Close()
	})
	return b
}

func pumpExists(r *Redis, topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pumps[topic]
	return ok
}

func TestRedisPumpFollowsMembership(t *testing.T) {
	b := newRedisBroker(t)
	topic := ChatTopic(uuid.New())
	sub := newChanSubscriber(8)

	require.NoError(t, b.Subscribe(topic, sub))
	assert.True(t, pumpExists(b, topic))

	sibling := newChanSubscriber(8)
	require.NoError(t, b.Subscribe(topic, sibling))
	require.NoError(t, b.Unsubscribe(topic, sibling))
	assert.True(t, pumpExists(b, topic), "pump must survive while members remain")

	require.NoError(t, b.Unsubscribe(topic, sub))
	assert.False(t, pumpExists(b, topic), "empty topic must release its pump")
}

func TestRedisMemberAlwaysHasPump(t *testing.T) {
	b := newRedisBroker(t)
	topic := NotificationsTopic(uuid.New())

	var missing atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := newChanSubscriber(8)
			_ = b.Subscribe(topic, sub)
			// while this subscriber is a member, a concurrent unsubscribe of
			// a sibling must never tear the topic's pump down
			if !pumpExists(b, topic) {
				missing.Add(1)
			}
			_ = b.Unsubscribe(topic, sub)
		}()
	}
	wg.Wait()

	assert.Zero(t, missing.Load(), "live subscriber observed topic without a pump")
	assert.Zero(t, b.local.subscriberCount(topic))
	assert.False(t, pumpExists(b, topic))
}
