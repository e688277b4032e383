package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	postsCreatedTotal        *prometheus.CounterVec
	attachmentsRejectedTotal *prometheus.CounterVec
	reactionsToggledTotal    *prometheus.CounterVec

	notificationsPublishedTotal *prometheus.CounterVec
	notificationsSkippedTotal   prometheus.Counter
	notificationsRelayedTotal   prometheus.Counter
	pushDeliveriesTotal         *prometheus.CounterVec
	streamClientsActive         prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the
// messaging core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "messaging_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		postsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_posts_created_total",
			Help: "Posts persisted, labelled by channel or room scope.",
		}, []string{"scope"})

		attachmentsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_attachments_rejected_total",
			Help: "Attachments dropped by the policy check, by reason.",
		}, []string{"reason"})

		reactionsToggledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_reactions_toggled_total",
			Help: "Reaction toggles, labelled added or removed.",
		}, []string{"state"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications persisted, by type.",
		}, []string{"type"})

		notificationsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_skipped_total",
			Help: "Notification creates suppressed by the dedup window.",
		})

		notificationsRelayedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_relayed_total",
			Help: "Notifications received from other nodes and re-delivered locally.",
		})

		pushDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Web Push delivery attempts, by outcome.",
		}, []string{"outcome"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_clients_active",
			Help: "Currently connected SSE notification clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			postsCreatedTotal,
			attachmentsRejectedTotal,
			reactionsToggledTotal,
			notificationsPublishedTotal,
			notificationsSkippedTotal,
			notificationsRelayedTotal,
			pushDeliveriesTotal,
			streamClientsActive,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PostsCreatedTotal exposes the post creation counter.
func PostsCreatedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return postsCreatedTotal
}

// AttachmentsRejectedTotal exposes the attachment policy counter.
func AttachmentsRejectedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return attachmentsRejectedTotal
}

// ReactionsToggledTotal exposes the reaction toggle counter.
func ReactionsToggledTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionsToggledTotal
}

// NotificationsPublishedTotal exposes the notification counter.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// NotificationsSkippedTotal exposes the dedup suppression counter.
func NotificationsSkippedTotal() prometheus.Counter {
	RegisterMetrics()
	return notificationsSkippedTotal
}

// NotificationsRelayedTotal exposes the cross-node relay counter.
func NotificationsRelayedTotal() prometheus.Counter {
	RegisterMetrics()
	return notificationsRelayedTotal
}

// PushDeliveriesTotal exposes the push delivery counter.
func PushDeliveriesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return pushDeliveriesTotal
}

// StreamClientsActive exposes the SSE client gauge.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
