package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger metrics, exported at /metrics by the API server.

var lotsGenerated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "lots_generated_total",
	Help:      "Total grant lots created by the generator.",
})

var lotsUpdated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "lots_updated_total",
	Help:      "Total grant lots recomputed after a policy table change.",
})

var lotsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "lots_expired_total",
	Help:      "Total grant lots whose remaining balance was forfeited.",
})

var approvals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "approvals_total",
	Help:      "Total leave requests settled against the ledger.",
})

var reversals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "reversals_total",
	Help:      "Total approved requests reversed (rejected or cancelled).",
})

var insufficientBalance = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "ledger",
	Name:      "insufficient_balance_total",
	Help:      "Total approvals refused for insufficient balance.",
})

var batchFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "leave",
	Subsystem: "batch",
	Name:      "employee_failures_total",
	Help:      "Total employees skipped by a batch run due to an error.",
})
