package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FramesReceived counts every frame read from the alert stream.
	FramesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdeck_stream_frames_received_total",
			Help: "Total number of frames received on the alert stream.",
		},
	)

	// FramesDropped counts frames rejected at the decode boundary.
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdeck_stream_frames_dropped_total",
			Help: "Frames dropped because they could not be decoded or validated.",
		},
		[]string{"reason"},
	)

	// Reconnects counts reconnect attempts scheduled after a drop or failed dial.
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdeck_stream_reconnects_total",
			Help: "Total number of reconnect attempts scheduled.",
		},
	)

	// Connected is 1 while the alert stream is open.
	Connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertdeck_stream_connected",
			Help: "Whether the alert stream is currently open (1) or not (0).",
		},
	)

	// StoredAlerts tracks the store size per urgency tier.
	StoredAlerts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alertdeck_store_alerts",
			Help: "Alerts currently held in the store by urgency tier.",
		},
		[]string{"tier"},
	)

	// AnalyzeRequests counts one-shot analysis requests by outcome.
	AnalyzeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdeck_analyze_requests_total",
			Help: "One-shot analysis requests by outcome.",
		},
		[]string{"outcome"},
	)

	// LiveClients tracks dashboard clients attached to the live feed.
	LiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertdeck_live_clients",
			Help: "Dashboard clients currently connected to the live feed.",
		},
	)

	// NotificationsSent counts chat notifications by outcome.
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdeck_notifications_total",
			Help: "Alert notifications posted to the chat webhook by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		FramesReceived,
		FramesDropped,
		Reconnects,
		Connected,
		StoredAlerts,
		AnalyzeRequests,
		LiveClients,
		NotificationsSent,
	)
}
