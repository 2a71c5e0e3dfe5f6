package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grant_search_requests_total",
			Help: "Grant searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grant_search_results",
			Help:    "Number of ranked opportunities returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	ComposeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_compose_total",
			Help: "Proposal sections composed",
		},
		[]string{"section", "action", "in_band"},
	)

	ComposeIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proposal_compose_iterations",
			Help:    "Trim/expand iterations per compose call",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"section"},
	)

	ComplianceIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_issues_total",
			Help: "Compliance issues raised by code and severity",
		},
		[]string{"code", "severity"},
	)

	DeadlineMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadline_mutations_total",
			Help: "Deadline store mutations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	NotificationsDue = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deadline_notifications_due_total",
			Help: "Reminder offsets that became due",
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opportunity_cache_lookups_total",
			Help: "Opportunity cache lookups by result",
		},
		[]string{"result"},
	)
)
