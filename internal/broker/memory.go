package broker

import (
	"context"
	"sync"

	"github.com/sara-platform/sara-hub/pkg/metrics"
)

// Memory is the process-local broker: a mutex-guarded map from topic name to
// subscriber set. Subscribe/unsubscribe/publish are linearizable per topic.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
	hub    *metrics.HubMetrics
}

// NewMemory builds an in-process broker. Metrics may be nil.
func NewMemory(hub *metrics.HubMetrics) *Memory {
	return &Memory{
		topics: map[string]map[Subscriber]struct{}{},
		hub:    hub,
	}
}

// Subscribe adds the subscriber to the topic's membership set. Subscribing
// twice is a no-op.
func (m *Memory) Subscribe(topic string, sub Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.topics[topic]
	if !ok {
		set = map[Subscriber]struct{}{}
		m.topics[topic] = set
	}
	set[sub] = struct{}{}
	return nil
}

// Unsubscribe removes the subscriber; absent membership is a no-op. Empty
// topics are pruned so closed sessions never linger in the registry.
func (m *Memory) Unsubscribe(topic string, sub Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.topics[topic]
	if !ok {
		return nil
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(m.topics, topic)
	}
	return nil
}

// Publish fans the payload out to every current subscriber. Enqueue is
// non-blocking, so one full session cannot stall delivery to the rest.
func (m *Memory) Publish(_ context.Context, topic string, payload []byte) error {
	m.hub.IncPublished(TopicKind(topic))
	m.deliver(topic, payload)
	return nil
}

// Close drops all memberships.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = map[string]map[Subscriber]struct{}{}
	return nil
}

func (m *Memory) deliver(topic string, payload []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.topics[topic] {
		if !sub.Enqueue(payload) {
			m.hub.IncDropped()
		}
	}
}

func (m *Memory) subscriberCount(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics[topic])
}
