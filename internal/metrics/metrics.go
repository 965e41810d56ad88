package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus instruments for the relay.
type Metrics struct {
	// Session lifecycle
	SessionsCreated prometheus.Counter
	SessionsEnded   prometheus.Counter
	SessionsExpired prometheus.Counter
	ActiveSessions  prometheus.Gauge

	// Listener membership
	ListenersJoined prometheus.Counter
	ListenersLeft   prometheus.Counter

	// Realtime fan-out
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// Audio ingest
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter

	// Upstream collaborators
	TranslationEvents prometheus.Counter
	RelayNegotiations prometheus.Counter
	RelayFailures     prometheus.Counter
	StreamingChannels prometheus.Gauge
}

// New creates and registers all instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_created_total",
			Help: "Total number of translation sessions created",
		}),
		SessionsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_ended_total",
			Help: "Total number of translation sessions ended explicitly",
		}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_sessions_expired_total",
			Help: "Total number of translation sessions removed by idle expiry",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_active_sessions",
			Help: "Current number of stored translation sessions",
		}),
		ListenersJoined: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_listeners_joined_total",
			Help: "Total number of listener subscriptions added",
		}),
		ListenersLeft: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_listeners_left_total",
			Help: "Total number of listener subscriptions removed",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_events_published_total",
			Help: "Total realtime events published, by kind",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_events_dropped_total",
			Help: "Total realtime event deliveries dropped due to slow clients",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_audio_frames_received_total",
			Help: "Total audio frames accepted from presenters",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_audio_frames_dropped_total",
			Help: "Total audio frames dropped (inactive session or full buffer)",
		}),
		TranslationEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_translation_events_total",
			Help: "Total translated results received from the speech service",
		}),
		RelayNegotiations: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_relay_negotiations_total",
			Help: "Total avatar SDP negotiations attempted",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicebridge_relay_failures_total",
			Help: "Total avatar SDP negotiations that failed",
		}),
		StreamingChannels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicebridge_streaming_channels",
			Help: "Current number of open upstream translation channels",
		}),
	}
}

// NewNop returns metrics registered on a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
