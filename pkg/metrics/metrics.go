// Package metrics provides Prometheus collectors for tabula's inference
// engine and catalog operations.
//
// # Basic Usage
//
//	// Count a coercion outcome
//	metrics.CoercionsTotal.WithLabelValues("number", metrics.OutcomeFailed).Inc()
//
//	// Track operation latency
//	timer := metrics.NewTimer("build_schema")
//	columns, report := builder.Build(batch)
//	timer.ObserveDuration()
//
// Collectors are registered with the default registry on package load and
// are exposed by the CLI's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeNull     = "null"
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
)

var (
	// RecordsFlattened counts source records turned into flat field maps.
	// Labels: source
	RecordsFlattened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_records_flattened_total",
			Help: "Total number of source records flattened",
		},
		[]string{"source"},
	)

	// ColumnsInferred counts columns proposed by the schema builder.
	// Labels: type (semantic column type)
	ColumnsInferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_columns_inferred_total",
			Help: "Total number of columns proposed by schema inference",
		},
		[]string{"type"},
	)

	// CoercionsTotal counts cell coercions.
	// Labels: type (target column type), outcome (ok/failed/null)
	CoercionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_coercions_total",
			Help: "Total number of cell value coercions",
		},
		[]string{"type", "outcome"},
	)

	// EvolutionChecks counts column type change validations.
	// Labels: outcome (allowed/rejected)
	EvolutionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_evolution_checks_total",
			Help: "Total number of column type change validations",
		},
		[]string{"outcome"},
	)

	// QualityScore holds the most recent quality score per component.
	// Labels: metric (completeness/consistency/validity/overall)
	QualityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tabula_quality_score",
			Help: "Most recent data quality score",
		},
		[]string{"metric"},
	)

	// OperationLatency tracks the duration of engine and catalog operations.
	// Labels: operation
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tabula_operation_duration_seconds",
			Help: "Duration of engine and catalog operations in seconds",
			Buckets: []float64{
				0.0001, // 100μs - single record operations
				0.001,  // 1ms
				0.01,   // 10ms - small batches
				0.1,    // 100ms
				1,      // 1s - large imports
				10,     // 10s
			},
		},
		[]string{"operation"},
	)

	// RowsWritten counts rows persisted by the catalog.
	// Labels: table
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_rows_written_total",
			Help: "Total number of rows written to the store",
		},
		[]string{"table"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name is used as the operation label when the duration is observed.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in OperationLatency and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := t.Stop()
	OperationLatency.WithLabelValues(t.name).Observe(d.Seconds())
	return d
}
