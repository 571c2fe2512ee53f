package contentmanifest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	manifestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cachito",
			Subsystem: "contentmanifest",
			Name:      "generated_total",
			Help:      "Total number of documents generated, by kind.",
		},
		[]string{"kind"},
	)

	skippedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cachito",
			Subsystem: "contentmanifest",
			Name:      "skipped_packages_total",
			Help:      "Total number of packages skipped because their type has no document mapping.",
		},
		[]string{"type"},
	)
)
