package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HubMetrics records gateway and broker activity. All methods are safe on a
// nil receiver so wiring metrics stays optional in tests.
type HubMetrics struct {
	sessionsOpen    *prometheus.GaugeVec
	eventsPublished *prometheus.CounterVec
	deliveryDropped prometheus.Counter
	botLatency      prometheus.Histogram
}

// NewHubMetrics registers the hub collectors on the provided registerer.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	if reg == nil {
		return &HubMetrics{}
	}
	sessionsOpen := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hub_sessions_open",
		Help: "Currently open websocket sessions by channel kind.",
	}, []string{"kind"})
	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_events_published_total",
		Help: "Events published to topics by channel kind.",
	}, []string{"kind"})
	deliveryDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_deliveries_dropped_total",
		Help: "Per-session deliveries dropped because the outbound buffer was full.",
	})
	botLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hub_bot_latency_seconds",
		Help:    "Latency of bot responder calls in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
	reg.MustRegister(sessionsOpen, eventsPublished, deliveryDropped, botLatency)
	return &HubMetrics{
		sessionsOpen:    sessionsOpen,
		eventsPublished: eventsPublished,
		deliveryDropped: deliveryDropped,
		botLatency:      botLatency,
	}
}

// IncSessions records a newly subscribed session for the given channel kind.
func (h *HubMetrics) IncSessions(kind string) {
	if h == nil || h.sessionsOpen == nil {
		return
	}
	h.sessionsOpen.WithLabelValues(normalizeLabel(kind)).Inc()
}

// DecSessions records a closed session for the given channel kind.
func (h *HubMetrics) DecSessions(kind string) {
	if h == nil || h.sessionsOpen == nil {
		return
	}
	h.sessionsOpen.WithLabelValues(normalizeLabel(kind)).Dec()
}

// IncPublished counts one publish to a topic of the given kind.
func (h *HubMetrics) IncPublished(kind string) {
	if h == nil || h.eventsPublished == nil {
		return
	}
	h.eventsPublished.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDropped counts one delivery dropped on a full session buffer.
func (h *HubMetrics) IncDropped() {
	if h == nil || h.deliveryDropped == nil {
		return
	}
	h.deliveryDropped.Inc()
}

// ObserveBotLatency records the duration of one bot responder call.
func (h *HubMetrics) ObserveBotLatency(d time.Duration) {
	if h == nil || h.botLatency == nil {
		return
	}
	h.botLatency.Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
