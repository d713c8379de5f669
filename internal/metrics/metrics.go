package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created by successful bookings, by initial status",
		},
		[]string{"status"},
	)

	BookingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Bookings refused by the ledger",
		},
		[]string{"reason"},
	)

	TicketsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_cancelled_total",
			Help: "Tickets moved to cancelled, by the status they left",
		},
		[]string{"from"},
	)

	ScanAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_scan_attempts_total",
			Help: "Ticket scan and check attempts by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	IssueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_issue_duration_seconds",
			Help:    "Duration of capacity-checked issuance",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)
