// Package metrics declares the Prometheus collectors for the graph layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "osfiler_http_request_duration_seconds",
		Help:    "HTTP request latency by method, route template and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// DBQueryDuration is labelled by SQL verb (SELECT, INSERT, ...).
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "osfiler_db_query_duration_seconds",
		Help:    "Database query latency by operation",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 3},
	}, []string{"operation"})

	DBQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osfiler_db_query_errors_total",
		Help: "Database queries that failed, excluding empty result sets",
	}, []string{"operation"})

	// RelationshipDeleteFallbacks counts resilient deletions resolved (or
	// abandoned) past the direct delete, by tier.
	RelationshipDeleteFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osfiler_relationship_delete_fallback_total",
		Help: "Relationship deletions that needed a fallback lookup, by tier",
	}, []string{"tier"})

	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osfiler_taxonomy_reconcile_items_total",
		Help: "Per-item outcomes of taxonomy reconciliation",
	}, []string{"entity_type", "outcome"})

	TypesAutoRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osfiler_taxonomy_auto_registered_total",
		Help: "Types registered implicitly when first used by a node or relationship",
	}, []string{"entity_type"})

	ImportedEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osfiler_import_entities_total",
		Help: "Entities processed by investigation import, by kind and outcome",
	}, []string{"kind", "outcome"})
)
