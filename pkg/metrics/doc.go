/*
Package metrics defines and registers clustercore's Prometheus metrics:
Raft leadership/peer gauges, DSLC reconciliation duration and action
dispatch counters, the error-store and deduplicator backlog gauges, and
the AAS's scale-decision counters and target-allocation gauge. Metrics
are exposed over HTTP via Handler for scraping.

Collector periodically resamples the gauges that reflect long-lived
in-memory state (leadership, error-store size, deduplicator backlog);
counters and one-shot histograms are updated inline by pkg/clusterstate,
pkg/dslc, and pkg/aas as events happen.

health.go provides a small component health registry independent of
Prometheus, backing /health, /ready, and /live HTTP handlers for use in
process supervisors and container orchestrators that probe clustercored
directly rather than scraping metrics.
*/
package metrics
