// Package metrics defines Prometheus counters for vminfo, covering Resource
// Graph paging, result cache lookups and token acquisitions. Counters can be
// flushed to a node-exporter textfile after a run.
package metrics
