package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recipe domain metrics
var (
	RecipeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_mutations_total",
			Help: "Total number of recipe mutations by operation and status",
		},
		[]string{"operation", "status"},
	)

	ProfileUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_updates_total",
			Help: "Total number of profile updates by status",
		},
		[]string{"status"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total validation failures",
		},
		[]string{"field"},
	)
)
