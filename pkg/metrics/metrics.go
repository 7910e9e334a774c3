package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueryPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vminfo_query_pages_total",
		Help: "Total number of Resource Graph pages requested",
	}, []string{"result"})
	QueryRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vminfo_query_records_total",
		Help: "Total number of virtual machine records received from Resource Graph",
	})
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vminfo_query_duration_seconds",
		Help:    "Duration of complete (all pages) Resource Graph queries",
		Buckets: prometheus.DefBuckets,
	})
	// result is one of hit, miss or error
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vminfo_cache_lookups_total",
		Help: "Total number of result cache lookups by outcome",
	}, []string{"result"})
	CacheWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vminfo_cache_writes_total",
		Help: "Total number of result cache writes by outcome",
	}, []string{"result"})
	// flow is device-code, service-principal, interactive or refresh
	TokenAcquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vminfo_token_acquisitions_total",
		Help: "Total number of token acquisitions by flow and outcome",
	}, []string{"flow", "result"})
)

func init() {
	prometheus.MustRegister(QueryPages)
	prometheus.MustRegister(QueryRecords)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(CacheWrites)
	prometheus.MustRegister(TokenAcquisitions)
}

// Outcome maps an error to the result label used by the counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// WriteTextfile writes every registered metric to path in the Prometheus text
// exposition format, replacing the file atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
