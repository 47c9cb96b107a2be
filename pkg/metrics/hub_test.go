package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHubMetricsRecordsSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHubMetrics(reg)

	m.IncSessions("notifications")
	m.IncSessions("notifications")
	m.DecSessions("notifications")
	m.IncSessions("chat")

	if got := testutil.ToFloat64(m.sessionsOpen.WithLabelValues("notifications")); got != 1 {
		t.Fatalf("expected 1 open notifications session, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsOpen.WithLabelValues("chat")); got != 1 {
		t.Fatalf("expected 1 open chat session, got %v", got)
	}
}

func TestHubMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHubMetrics(reg)

	m.IncPublished("chat")
	m.IncPublished("CHAT")
	m.IncDropped()
	m.ObserveBotLatency(1500 * time.Millisecond)

	if got := testutil.ToFloat64(m.eventsPublished.WithLabelValues("chat")); got != 2 {
		t.Fatalf("expected 2 published chat events, got %v", got)
	}
	if got := testutil.ToFloat64(m.deliveryDropped); got != 1 {
		t.Fatalf("expected 1 dropped delivery, got %v", got)
	}
}

func TestHubMetricsNilSafe(t *testing.T) {
	var m *HubMetrics
	m.IncSessions("chat")
	m.DecSessions("chat")
	m.IncPublished("chat")
	m.IncDropped()
	m.ObserveBotLatency(time.Second)

	empty := NewHubMetrics(nil)
	empty.IncSessions("chat")
}
