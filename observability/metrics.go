// Package observability exposes the engine's Prometheus metrics. The
// MetricsSink is wired as a permanent fanout sink so counters track the
// event stream without touching the send path.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"amora/contract"
	"amora/domain/event"
)

type Metrics struct {
	MessagesDelivered prometheus.Counter
	MessagesSent      prometheus.Counter
	SeenUpdates       prometheus.Counter
	PresenceOnline    prometheus.Counter
	PresenceOffline   prometheus.Counter
	TypingEvents      prometheus.Counter
	ActiveSessions    prometheus.Gauge

	ProcessRSS prometheus.Gauge
	ProcessCPU prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_messages_delivered_total",
			Help: "Messages acknowledged as delivered to a live receiver session.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_messages_sent_total",
			Help: "Messages persisted while the receiver was offline.",
		}),
		SeenUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_seen_updates_total",
			Help: "Bulk mark-seen notifications broadcast.",
		}),
		PresenceOnline: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_presence_online_total",
			Help: "Offline to online presence transitions.",
		}),
		PresenceOffline: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_presence_offline_total",
			Help: "Online to offline presence transitions.",
		}),
		TypingEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amora_typing_events_total",
			Help: "Typing indicator events fanned out.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amora_active_sessions",
			Help: "Currently connected websocket sessions.",
		}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amora_process_rss_bytes",
			Help: "Resident memory of the engine process.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amora_process_cpu_percent",
			Help: "CPU usage of the engine process.",
		}),
	}
	reg.MustRegister(
		m.MessagesDelivered, m.MessagesSent, m.SeenUpdates,
		m.PresenceOnline, m.PresenceOffline, m.TypingEvents,
		m.ActiveSessions, m.ProcessRSS, m.ProcessCPU,
	)
	return m
}

func (m *Metrics) ObserveProcess(rss uint64, cpuPercent float64) {
	m.ProcessRSS.Set(float64(rss))
	m.ProcessCPU.Set(cpuPercent)
}

// MetricsSink counts domain events as they pass through the fanout.
type MetricsSink struct {
	metrics *Metrics
}

func NewMetricsSink(metrics *Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

var _ contract.EventSink = (*MetricsSink)(nil)

func (s *MetricsSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		s.metrics.MessagesDelivered.Inc()
	case event.MessageSent:
		s.metrics.MessagesSent.Inc()
	case event.MessagesSeen:
		s.metrics.SeenUpdates.Inc()
	case event.UserTyping:
		s.metrics.TypingEvents.Inc()
	case event.UserStatus:
		if evt.IsOnline {
			s.metrics.PresenceOnline.Inc()
		} else {
			s.metrics.PresenceOffline.Inc()
		}
	}
	return nil
}
