package notification

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// notificationsSentTotal counts dispatched payloads by app and channel
	notificationsSentTotal *prometheus.CounterVec

	// notificationErrorsTotal counts channel failures by app and channel
	notificationErrorsTotal *prometheus.CounterVec

	// notificationsGroupedTotal counts batches collapsed into one message
	notificationsGroupedTotal *prometheus.CounterVec

	// ticketCaseReuseTotal tracks the outcome of the case-reuse protocol
	ticketCaseReuseTotal *prometheus.CounterVec
)

// InitMetrics registers the hub metrics. Called once at startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		notificationsSentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nightwatch_notifications_sent_total",
				Help: "Total number of notifications dispatched by app and channel",
			},
			[]string{"app", "channel"},
		)

		notificationErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nightwatch_notification_errors_total",
				Help: "Total number of channel dispatch failures by app and channel",
			},
			[]string{"app", "channel"},
		)

		notificationsGroupedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nightwatch_notifications_grouped_total",
				Help: "Total number of batches collapsed into a grouped message",
			},
			[]string{"app"},
		)

		ticketCaseReuseTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nightwatch_ticket_case_reuse_total",
				Help: "Outcomes of the ticketing case-reuse protocol",
			},
			[]string{"outcome"},
		)
	})
}

func recordSent(app App, channel string) {
	if notificationsSentTotal != nil {
		notificationsSentTotal.WithLabelValues(string(app), channel).Inc()
	}
}

func recordError(app App, channel string) {
	if notificationErrorsTotal != nil {
		notificationErrorsTotal.WithLabelValues(string(app), channel).Inc()
	}
}

func recordGrouped(app App) {
	if notificationsGroupedTotal != nil {
		notificationsGroupedTotal.WithLabelValues(string(app)).Inc()
	}
}

func recordCaseReuse(outcome string) {
	if ticketCaseReuseTotal != nil {
		ticketCaseReuseTotal.WithLabelValues(outcome).Inc()
	}
}
