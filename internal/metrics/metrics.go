package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts accepted visitor submissions.
	Submissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "visitordesk",
		Name:      "submissions_total",
		Help:      "Visitor entries recorded.",
	})

	// Decisions counts approve/disapprove outcomes by status and result.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitordesk",
		Name:      "decisions_total",
		Help:      "Approval decisions by resulting status and outcome.",
	}, []string{"status", "result"})

	// Notifications counts outbound emails by kind and result.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitordesk",
		Name:      "notifications_total",
		Help:      "Outbound notification emails by kind and result.",
	}, []string{"kind", "result"})

	// Subscribers tracks connected live status viewers.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "visitordesk",
		Name:      "status_subscribers",
		Help:      "Currently connected live status viewers.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "visitordesk",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// ObserveNotification records the outcome of a notification attempt.
func ObserveNotification(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	Notifications.WithLabelValues(kind, result).Inc()
}
