// Package metrics exposes a Prometheus Collector tracking the counters a
// server or client session accumulates over its lifetime (the server feeds
// all but the reconciliation counters, which the client feeds): decode failures, dropped
// stale-sequence inputs, missing-entity drops, reconciliation activity,
// pruned snapshots, active clients, and broadcasts sent. Shaped after the
// pack's TCPInfoCollector: a Describe/Collect pair reading from atomically
// updated internal counters, served over a plain net/http mux.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements prometheus.Collector over a fixed set of session
// counters. Callers increment the exported methods from any
// goroutine; Collect reads them with atomic loads.
type Collector struct {
	decodeErrors         atomic.Uint64
	droppedStaleSequence atomic.Uint64
	missingEntityDrops   atomic.Uint64
	reconciliationsFired atomic.Uint64
	reconciliationsSkipped atomic.Uint64
	snapshotsPruned      atomic.Uint64
	broadcastsSent       atomic.Uint64
	activeClients        atomic.Int64

	descDecodeErrors         *prometheus.Desc
	descDroppedStaleSequence *prometheus.Desc
	descMissingEntityDrops   *prometheus.Desc
	descReconciliationsFired *prometheus.Desc
	descReconciliationsSkipped *prometheus.Desc
	descSnapshotsPruned      *prometheus.Desc
	descBroadcastsSent       *prometheus.Desc
	descActiveClients        *prometheus.Desc
}

// New constructs a Collector with its metric descriptors named under the
// netcode_ prefix.
func New() *Collector {
	return &Collector{
		descDecodeErrors: prometheus.NewDesc(
			"netcode_decode_errors_total", "Total packets that failed to decode.", nil, nil),
		descDroppedStaleSequence: prometheus.NewDesc(
			"netcode_dropped_stale_sequence_total", "Total inputs dropped for a stale sequence number.", nil, nil),
		descMissingEntityDrops: prometheus.NewDesc(
			"netcode_missing_entity_drops_total", "Total operations dropped because their entity could not be resolved.", nil, nil),
		descReconciliationsFired: prometheus.NewDesc(
			"netcode_reconciliations_fired_total", "Total reconciliations that exceeded the position threshold.", nil, nil),
		descReconciliationsSkipped: prometheus.NewDesc(
			"netcode_reconciliations_skipped_total", "Total reconciliations skipped by cooldown or threshold.", nil, nil),
		descSnapshotsPruned: prometheus.NewDesc(
			"netcode_snapshots_pruned_total", "Total snapshots evicted by retention pruning.", nil, nil),
		descBroadcastsSent: prometheus.NewDesc(
			"netcode_broadcasts_sent_total", "Total state broadcasts sent to clients.", nil, nil),
		descActiveClients: prometheus.NewDesc(
			"netcode_active_clients", "Current number of tracked clients.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.descDecodeErrors
	descs <- c.descDroppedStaleSequence
	descs <- c.descMissingEntityDrops
	descs <- c.descReconciliationsFired
	descs <- c.descReconciliationsSkipped
	descs <- c.descSnapshotsPruned
	descs <- c.descBroadcastsSent
	descs <- c.descActiveClients
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	metrics <- prometheus.MustNewConstMetric(c.descDecodeErrors, prometheus.CounterValue, float64(c.decodeErrors.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descDroppedStaleSequence, prometheus.CounterValue, float64(c.droppedStaleSequence.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descMissingEntityDrops, prometheus.CounterValue, float64(c.missingEntityDrops.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descReconciliationsFired, prometheus.CounterValue, float64(c.reconciliationsFired.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descReconciliationsSkipped, prometheus.CounterValue, float64(c.reconciliationsSkipped.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descSnapshotsPruned, prometheus.CounterValue, float64(c.snapshotsPruned.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descBroadcastsSent, prometheus.CounterValue, float64(c.broadcastsSent.Load()))
	metrics <- prometheus.MustNewConstMetric(c.descActiveClients, prometheus.GaugeValue, float64(c.activeClients.Load()))
}

func (c *Collector) IncDecodeError()           { c.decodeErrors.Add(1) }
func (c *Collector) IncDroppedStaleSequence()  { c.droppedStaleSequence.Add(1) }
func (c *Collector) IncMissingEntityDrop()     { c.missingEntityDrops.Add(1) }
func (c *Collector) IncReconciliationFired()   { c.reconciliationsFired.Add(1) }
func (c *Collector) IncReconciliationSkipped() { c.reconciliationsSkipped.Add(1) }
func (c *Collector) AddSnapshotsPruned(n int)  { c.snapshotsPruned.Add(uint64(n)) }
func (c *Collector) IncBroadcastSent()         { c.broadcastsSent.Add(1) }
func (c *Collector) SetActiveClients(n int)    { c.activeClients.Store(int64(n)) }

// Serve registers the Collector with a dedicated registry and serves it at
// addr under /metrics until the process exits or the listener errors.
func Serve(addr string, c *Collector) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return http.ListenAndServe(addr, mux)
}
