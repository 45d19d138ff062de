package billing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level metrics for the billing engine. Registered against the
// default registry; the API server exposes them on /metrics.

var reportsBuilt = promauto.NewCounter(prometheus.CounterOpts{
	Name: "billing_reports_built_total",
	Help: "Number of project billing reports assembled.",
})

var integrityViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "billing_integrity_violations_total",
	Help: "Arithmetic inconsistencies detected while assembling reports.",
}, []string{"check"})

var adjustmentsCommitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "billing_adjustments_committed_total",
	Help: "Management adjustments created or updated.",
})
