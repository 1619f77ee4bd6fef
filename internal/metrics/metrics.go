// Package metrics provides Prometheus metrics for the RFQ service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsCreated tracks created requests
	RequestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "rfq",
			Name:      "requests_created_total",
			Help:      "Total number of created requests",
		},
	)

	// TokensIssued tracks offer tokens by outcome (created, reused)
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "rfq",
			Name:      "offer_tokens_total",
			Help:      "Offer token issue attempts by outcome",
		},
		[]string{"outcome"},
	)

	// OffersSubmitted tracks accepted offers
	OffersSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "rfq",
			Name:      "offers_submitted_total",
			Help:      "Total number of accepted offers",
		},
	)

	// OffersRejected tracks rejected offer submissions by reason code
	OffersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "rfq",
			Name:      "offers_rejected_total",
			Help:      "Rejected offer submissions by reason",
		},
		[]string{"reason"},
	)

	// Awards tracks award attempts by outcome
	Awards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "rfq",
			Name:      "awards_total",
			Help:      "Award attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Notifications tracks email delivery by status (sent, failed, dropped)
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metaltrade",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Email notifications by delivery status",
		},
		[]string{"status"},
	)

	// LiveConnections tracks open websocket connections
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "metaltrade",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Number of open websocket connections",
		},
	)
)
